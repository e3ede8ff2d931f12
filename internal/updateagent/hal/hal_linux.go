//go:build linux

package hal

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
)

const (
	netClassDir     = "/sys/class/net"
	watchdogDev     = "/dev/watchdog"
	bootStatusPath  = "/sys/class/watchdog/watchdog0/bootstatus"
	stateDir        = "/var/lib/gatewing"
	softResetMarker = "soft_reset"
	slotStatePath   = "/etc/gatewing/boot_slot"
)

// LinuxHAL adapts the agent to an embedded Linux board with an A/B slot
// layout managed through the bootloader environment.
type LinuxHAL struct {
	iface string

	watchdogMu sync.Mutex
	watchdog   *os.File
}

func NewHAL() core.HAL {
	return &LinuxHAL{iface: primaryInterface()}
}

// primaryInterface picks the first non-loopback interface under /sys/class/net.
func primaryInterface() string {
	entries, err := os.ReadDir(netClassDir)
	if err != nil {
		return "eth0"
	}
	for _, e := range entries {
		if e.Name() != "lo" {
			return e.Name()
		}
	}
	return "eth0"
}

func (h *LinuxHAL) MACAddress() (string, error) {
	data, err := os.ReadFile(filepath.Join(netClassDir, h.iface, "address"))
	if err != nil {
		return "", fmt.Errorf("failed to read burned-in MAC: %w", err)
	}
	return strings.ToUpper(strings.TrimSpace(string(data))), nil
}

func (h *LinuxHAL) FirmwareVersion() string {
	data, _ := os.ReadFile("/etc/gatewing/version")
	return strings.TrimSpace(string(data))
}

// ResetCause distinguishes a requested reboot from power loss or a watchdog
// reset. Reboot() drops a marker file before restarting; a watchdog reset is
// reported by the watchdog driver's bootstatus.
func (h *LinuxHAL) ResetCause() core.ResetCause {
	marker := filepath.Join(stateDir, softResetMarker)
	if _, err := os.Stat(marker); err == nil {
		_ = os.Remove(marker) // consume it, the next boot starts clean
		return core.ResetCauseSoftware
	}

	if data, err := os.ReadFile(bootStatusPath); err == nil {
		if strings.TrimSpace(string(data)) != "0" {
			return core.ResetCauseWatchdog
		}
		return core.ResetCausePowerOn
	}

	return core.ResetCauseUnknown
}

func (h *LinuxHAL) BootPartition() (string, error) {
	// The bootloader records the active slot's flash offset at boot.
	data, err := os.ReadFile(slotStatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read active boot slot: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (h *LinuxHAL) InstallImage(path string) error {
	log.Info("Committing firmware image to the inactive slot", "image", path)
	// fw_install writes the image to the inactive bank and verifies it.
	out, err := exec.Command("/usr/sbin/gatewing-fw-install", path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("fw install failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (h *LinuxHAL) SwitchBootSlot() error {
	// Flips the bootloader's active-slot environment variable.
	out, err := exec.Command("/usr/sbin/gatewing-fw-install", "--switch-slot").CombinedOutput()
	if err != nil {
		return fmt.Errorf("slot switch failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (h *LinuxHAL) RegisterWatchdog() error {
	h.watchdogMu.Lock()
	defer h.watchdogMu.Unlock()

	if h.watchdog != nil {
		return nil
	}
	f, err := os.OpenFile(watchdogDev, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open watchdog device: %w", err)
	}
	h.watchdog = f
	return nil
}

func (h *LinuxHAL) FeedWatchdog() error {
	h.watchdogMu.Lock()
	defer h.watchdogMu.Unlock()

	if h.watchdog == nil {
		return fmt.Errorf("watchdog not registered")
	}
	_, err := h.watchdog.Write([]byte("\x00"))
	return err
}

func (h *LinuxHAL) UnregisterWatchdog() error {
	h.watchdogMu.Lock()
	defer h.watchdogMu.Unlock()

	if h.watchdog == nil {
		return nil
	}
	// Magic close: tells the driver this is an orderly release, not a hang.
	_, _ = h.watchdog.Write([]byte("V"))
	err := h.watchdog.Close()
	h.watchdog = nil
	return err
}

func (h *LinuxHAL) DropNetworkLink() error {
	log.Info("Taking network link down", "iface", h.iface)
	return exec.Command("ip", "link", "set", h.iface, "down").Run()
}

func (h *LinuxHAL) Reboot() error {
	if err := os.MkdirAll(stateDir, 0755); err == nil {
		_ = os.WriteFile(filepath.Join(stateDir, softResetMarker), []byte("1"), 0644)
	}
	log.Info("System is rebooting NOW...")
	syscall.Sync()
	return syscall.Reboot(syscall.LINUX_REBOOT_CMD_RESTART)
}
