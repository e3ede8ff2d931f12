package core

// ResetCause identifies why the device last reset.
type ResetCause string

const (
	ResetCausePowerOn  ResetCause = "power-on"
	ResetCauseSoftware ResetCause = "software"
	ResetCauseWatchdog ResetCause = "watchdog"
	ResetCauseUnknown  ResetCause = "unknown"
)

// HAL (Hardware Abstraction Layer) is the agent's outbound port to the
// operating system and board facilities.
type HAL interface {
	// MACAddress returns the device's burned-in MAC address as an uppercase
	// colon-separated hex string ("AA:BB:CC:DD:EE:FF"). This is the device's
	// key on the bus.
	MACAddress() (string, error)

	// FirmwareVersion returns the currently running firmware version.
	FirmwareVersion() string

	// ResetCause reports why the device last reset.
	ResetCause() ResetCause

	// BootPartition returns the address of the storage bank the device
	// booted from, e.g. "0x10000".
	BootPartition() (string, error)

	// InstallImage commits a staged firmware image to the inactive storage bank.
	InstallImage(path string) error

	// SwitchBootSlot marks the inactive bank active for the next boot.
	SwitchBootSlot() error

	// RegisterWatchdog enrolls the calling task with the liveness watchdog.
	// Once registered, FeedWatchdog must be called periodically or the
	// platform force-resets the device.
	RegisterWatchdog() error

	// FeedWatchdog acknowledges the liveness watchdog.
	FeedWatchdog() error

	// UnregisterWatchdog releases the watchdog registration.
	UnregisterWatchdog() error

	// DropNetworkLink takes the network interface down ahead of a reboot.
	DropNetworkLink() error

	// Reboot restarts the device. On real hardware this does not return.
	Reboot() error
}
