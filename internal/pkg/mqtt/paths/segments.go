package paths

// Topic segments for the Gatewing update protocol. These constants define the
// routing topology contract between the update backend and the device agent.

// Downstream: Cloud -> Device
const (
	// UpdateCommand carries the firmware update command.
	// Payload: a JSON object mapping device keys (MAC) to download URLs.
	// Pattern: {root}/update/command/{deviceKey}
	UpdateCommand = "update/command"
)

// Upstream: Device -> Cloud
const (
	// Register is the segment for device registration on startup.
	// Pattern: {root}/register/{deviceKey}
	Register = "register"

	// Online is the segment for the online/offline presence message and the
	// broker-published will on unexpected disconnect.
	// Pattern: {root}/online/{deviceKey}
	Online = "online"

	// UpdateStatus carries progress and outcome texts during a transfer.
	// Payload: { "<deviceKey>": "<status text>" }
	// Pattern: {root}/update/status/{deviceKey}
	UpdateStatus = "update/status"
)
