//go:build !linux

package hal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gatewing-io/gatewing/internal/updateagent/core"
	"github.com/gatewing-io/gatewing/pkg/log"
)

// MockHAL simulates the board in a development environment, backed by files
// under a temp directory so state survives across "reboots" of the process.
type MockHAL struct {
	baseDir string
	feeds   atomic.Int64
}

func NewHAL() core.HAL {
	tmpDir := filepath.Join(os.TempDir(), "gatewing-mock-hal")
	_ = os.MkdirAll(tmpDir, 0755)
	return &MockHAL{baseDir: tmpDir}
}

func (h *MockHAL) MACAddress() (string, error) {
	if mac := os.Getenv("GATEWING_DEVICE_MAC"); mac != "" {
		return strings.ToUpper(mac), nil
	}
	return "AA:BB:CC:DD:EE:FF", nil
}

func (h *MockHAL) FirmwareVersion() string {
	data, err := os.ReadFile(filepath.Join(h.baseDir, "current_version"))
	if err != nil {
		return "v1.0.0"
	}
	return strings.TrimSpace(string(data))
}

func (h *MockHAL) ResetCause() core.ResetCause {
	marker := filepath.Join(h.baseDir, "soft_reset")
	if _, err := os.Stat(marker); err == nil {
		_ = os.Remove(marker)
		return core.ResetCauseSoftware
	}
	return core.ResetCausePowerOn
}

func (h *MockHAL) BootPartition() (string, error) {
	data, err := os.ReadFile(filepath.Join(h.baseDir, "boot_slot"))
	if err != nil {
		return "0x10000", nil
	}
	return strings.TrimSpace(string(data)), nil
}

func (h *MockHAL) InstallImage(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("staged image missing: %w", err)
	}
	log.Info("[HAL-Mock] Writing firmware to inactive slot", "image", path, "bytes", info.Size())
	return nil
}

func (h *MockHAL) SwitchBootSlot() error {
	current, _ := h.BootPartition()
	next := "0x10000"
	if current == "0x10000" {
		next = "0x210000"
	}
	log.Info("[HAL-Mock] Switching active slot", "from", current, "to", next)
	return os.WriteFile(filepath.Join(h.baseDir, "boot_slot"), []byte(next), 0644)
}

func (h *MockHAL) RegisterWatchdog() error {
	log.Debug("[HAL-Mock] Watchdog registered")
	return nil
}

func (h *MockHAL) FeedWatchdog() error {
	h.feeds.Add(1)
	return nil
}

func (h *MockHAL) UnregisterWatchdog() error {
	log.Debug("[HAL-Mock] Watchdog released", "feeds", h.feeds.Load())
	return nil
}

func (h *MockHAL) DropNetworkLink() error {
	log.Info("[HAL-Mock] Network link down")
	return nil
}

func (h *MockHAL) Reboot() error {
	log.Warn("[HAL-Mock] >>> REBOOT REQUESTED <<<")
	// The marker makes the next process start look like a software reset,
	// so the boot provenance tracker exercises its real path.
	return os.WriteFile(filepath.Join(h.baseDir, "soft_reset"), []byte("1"), 0644)
}
