package defaults

import (
	"errors"
	"strings"

	"github.com/sahib/config"
	"github.com/ulule/limiter"
)

func uriValidator(val interface{}) error {
	s, ok := val.(string)
	if !ok {
		return errors.New("uri must be a string")
	}

	idx := strings.Index(s, "://")
	if idx <= 0 {
		return errors.New("uri needs a scheme (e.g. mem:///)")
	}

	return nil
}

func rateValidator(val interface{}) error {
	s, ok := val.(string)
	if !ok {
		return errors.New("rate must be a string")
	}

	if s == "" {
		return nil
	}

	_, err := limiter.NewRateFromFormatted(s)
	return err
}

func floatRangeValidator(min, max float64) func(val interface{}) error {
	return func(val interface{}) error {
		var f float64
		switch v := val.(type) {
		case float64:
			f = v
		case int64:
			f = float64(v)
		case int:
			f = float64(v)
		default:
			return errors.New("not a number")
		}

		if f < min || f > max {
			return errors.New("value out of range")
		}

		return nil
	}
}

// DefaultsV0 is the default config validation for fsh
var DefaultsV0 = config.DefaultMapping{
	"fs": config.DefaultMapping{
		"default_uri": config.DefaultEntry{
			Default:      "mem:///",
			NeedsRestart: true,
			Docs: `The store that is used when a path has no scheme.

  * mem:///            a store in memory, lost on exit.
  * file:///           a local directory (see local.root).
  * kv:///             a badger database (see kv.path).
  * webhdfs://host:port a remote namenode (also hdfs:// and swebhdfs://).
`,
			Validator: uriValidator,
		},
		"user": config.DefaultEntry{
			Default:      "",
			NeedsRestart: true,
			Docs:         "The acting user. The user running fsh is used when empty.",
		},
		"home_prefix": config.DefaultEntry{
			Default:      "/user",
			NeedsRestart: true,
			Docs:         "Home directories are <home_prefix>/<user>, unless the store knows better.",
		},
		"overwrite": config.DefaultEntry{
			Default:      false,
			NeedsRestart: false,
			Docs:         "Wether put and copyFromLocal replace existing files.",
		},
		"superuser": config.DefaultEntry{
			Default:      "fsh",
			NeedsRestart: true,
			Docs:         "Name of the superuser of the memory store.",
		},
	},
	"local": config.DefaultMapping{
		"root": config.DefaultEntry{
			Default:      "~/.fsh/data",
			NeedsRestart: true,
			Docs:         "Directory that file:/// maps to.",
		},
	},
	"kv": config.DefaultMapping{
		"path": config.DefaultEntry{
			Default:      "~/.fsh/kv",
			NeedsRestart: true,
			Docs:         "Directory of the badger database behind kv:///.",
		},
		"compression": config.DefaultEntry{
			Default:      "snappy",
			NeedsRestart: false,
			Docs:         "What compression algorithm to use for new files.",
			Validator: config.EnumValidator(
				"snappy", "lz4", "none",
			),
		},
		"block_size": config.DefaultEntry{
			Default:      64 * 1024,
			NeedsRestart: false,
			Docs:         "Size of a single (uncompressed) block in bytes.",
			Validator:    config.IntRangeValidator(512, 64*1024*1024),
		},
	},
	"webhdfs": config.DefaultMapping{
		"timeout": config.DefaultEntry{
			Default:      "30s",
			NeedsRestart: true,
			Docs:         "How long to wait for the response of a single attempt.",
			Validator:    config.DurationValidator(),
		},
		"retry_max": config.DefaultEntry{
			Default:      3,
			NeedsRestart: true,
			Docs:         "How often a request is retried on connection errors and 502/503/504.",
			Validator:    config.IntRangeValidator(0, 100),
		},
		"retry_wait_min": config.DefaultEntry{
			Default:      "100ms",
			NeedsRestart: true,
			Docs:         "Minimum wait time between two attempts.",
			Validator:    config.DurationValidator(),
		},
		"retry_wait_max": config.DefaultEntry{
			Default:      "2s",
			NeedsRestart: true,
			Docs:         "Maximum wait time between two attempts.",
			Validator:    config.DurationValidator(),
		},
		"max_requests_per_second": config.DefaultEntry{
			Default:      0.0,
			NeedsRestart: true,
			Docs:         "How many requests per second to send at max. 0 means no limit.",
			Validator:    floatRangeValidator(0, 1e6),
		},
	},
	"gateway": config.DefaultMapping{
		"host": config.DefaultEntry{
			Default:      "localhost",
			NeedsRestart: true,
			Docs:         "On what interface the gateway listens.",
		},
		"port": config.DefaultEntry{
			Default:      9870,
			NeedsRestart: true,
			Docs:         "On what port the gateway runs on. 0 picks a free port.",
			Validator:    config.IntRangeValidator(0, 65535),
		},
		"default_user": config.DefaultEntry{
			Default:      "dr.who",
			NeedsRestart: false,
			Docs:         "User assumed for requests without user.name.",
		},
		"rate_limit": config.DefaultEntry{
			Default:      "1000-S",
			NeedsRestart: true,
			Docs:         "Requests allowed per client, like 1000-S or 50000-H. Empty disables the limit.",
			Validator:    rateValidator,
		},
		"compress": config.DefaultEntry{
			Default:      true,
			NeedsRestart: true,
			Docs:         "Wether responses are gzip compressed for clients that accept it.",
		},
		"cert": config.DefaultMapping{
			"certfile": config.DefaultEntry{
				Default:      "",
				NeedsRestart: true,
				Docs:         "Path to an existing .cert file. Ignored if empty.",
			},
			"keyfile": config.DefaultEntry{
				Default:      "",
				NeedsRestart: true,
				Docs:         "Path to an existing key file.",
			},
		},
	},
	"log": config.DefaultMapping{
		"level": config.DefaultEntry{
			Default:      "info",
			NeedsRestart: false,
			Docs:         "Minimum level of log messages.",
			Validator: config.EnumValidator(
				"debug", "info", "warning", "error", "fatal",
			),
		},
		"colors": config.DefaultEntry{
			Default:      true,
			NeedsRestart: false,
			Docs:         "Wether log output is colored when writing to a terminal.",
		},
	},
}
