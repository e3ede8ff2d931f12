package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every per-concern option struct. Validation is
// collected by the owning command's options aggregate.
type IOptions interface {
	// Validate checks the user-supplied values.
	Validate() []error

	// AddFlags binds the options to the given flag set.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a valid "host:port" string.
func ValidateAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	return nil
}
