package security

// Policy holds the single privileged identity. It is loaded once at
// startup and never changes afterwards.
type Policy struct {
	// PrivilegedID is the opaque caller id allowed to run privileged commands.
	PrivilegedID string `mapstructure:"admin_id"`
}

// Authorize reports whether requesterID is the privileged identity.
// An unset policy never authorizes anyone.
func Authorize(requesterID string, policy *Policy) bool {
	if policy == nil || policy.PrivilegedID == "" {
		return false
	}
	return requesterID == policy.PrivilegedID
}

// Command names one entry of the command surface.
type Command string

const (
	CommandLookup  Command = "lookup"
	CommandRestart Command = "restart"
	CommandStart   Command = "start"
	CommandLock    Command = "lock"
	CommandStatus  Command = "status"
	CommandAddKey  Command = "addkey"
	CommandDeny    Command = "deny"
	CommandAllow   Command = "allow"
)

// Requirement describes the gates a command must pass.
type Requirement struct {
	RequiresAuth    bool
	RequiresConfirm bool
}

// DefaultRequirements returns the requirement table for the command
// surface. Only the lookup command is open to everyone.
func DefaultRequirements() map[Command]Requirement {
	return map[Command]Requirement{
		CommandLookup:  {},
		CommandRestart: {RequiresAuth: true, RequiresConfirm: true},
		CommandStart:   {RequiresAuth: true},
		CommandLock:    {RequiresAuth: true},
		CommandStatus:  {RequiresAuth: true},
		CommandAddKey:  {RequiresAuth: true, RequiresConfirm: true},
		CommandDeny:    {RequiresAuth: true},
		CommandAllow:   {RequiresAuth: true},
	}
}

// Commands lists the known commands in display order.
func Commands() []Command {
	return []Command{
		CommandLookup, CommandRestart, CommandStart, CommandLock,
		CommandStatus, CommandAddKey, CommandDeny, CommandAllow,
	}
}
