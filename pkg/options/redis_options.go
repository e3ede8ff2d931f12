package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*RedisOptions)(nil)

// RedisOptions configures the connection to the device-local redis instance
// used as the durable state store.
type RedisOptions struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`

	// HashKey is the redis hash under which all persisted state lives.
	HashKey string `json:"hash-key" mapstructure:"hash-key"`
}

func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		Addr:    "localhost:6379",
		HashKey: "gatewing:state",
	}
}

func (o *RedisOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func (o *RedisOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Addr, "redis.addr", o.Addr, "Address of the local redis instance.")
	fs.StringVar(&o.Password, "redis.password", o.Password, "Password for redis authentication.")
	fs.IntVar(&o.DB, "redis.db", o.DB, "Redis database number.")
	fs.StringVar(&o.HashKey, "redis.hash-key", o.HashKey, "Redis hash holding persisted device state.")
}
