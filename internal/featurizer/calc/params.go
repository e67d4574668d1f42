package calc

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// DefaultTimeoutSeconds bounds a single PaDEL call.
const DefaultTimeoutSeconds = 30

// Params are the constructor parameters of a PadelDescriptors.  They are the
// only state that is persisted; the descriptor schema is always re-probed.
type Params struct {
	Descriptors      bool `json:"descriptors" yaml:"descriptors" mapstructure:"descriptors"`
	Fingerprints     bool `json:"fingerprints" yaml:"fingerprints" mapstructure:"fingerprints"`
	Timeout          int  `json:"timeout" yaml:"timeout" mapstructure:"timeout"` // seconds; 0 disables
	ReplaceNaN       bool `json:"replace_nan" yaml:"replace_nan" mapstructure:"replace_nan"`
	DoNotStandardize bool `json:"do_not_standardize" yaml:"do_not_standardize" mapstructure:"do_not_standardize"`
}

// DefaultParams returns descriptors and fingerprints on, a 30 second
// timeout, NaN kept and standardization on.
func DefaultParams() Params {
	return Params{
		Descriptors:  true,
		Fingerprints: true,
		Timeout:      DefaultTimeoutSeconds,
	}
}

// TimeoutDuration converts Timeout to a duration.
func (p Params) TimeoutDuration() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// Validate rejects parameter sets PaDEL cannot run with.
func (p Params) Validate() error {
	if p.Timeout < 0 {
		return errors.Newf(errors.ErrCodeInvalidParams, "timeout must not be negative, got %d", p.Timeout)
	}
	if !p.Descriptors && !p.Fingerprints {
		return errors.New(errors.ErrCodeInvalidParams, "at least one of descriptors or fingerprints must be enabled")
	}
	return nil
}

// DecodeParams reads params from JSON or YAML.  Keys that are absent keep
// their defaults.
func DecodeParams(data []byte) (Params, error) {
	p := DefaultParams()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, errors.Wrap(err, errors.ErrCodeInvalidParams, "cannot decode featurizer params")
	}
	return p, p.Validate()
}

// ParamsFromMap builds params from a loosely typed mapping such as a request
// body or registry arguments.
func ParamsFromMap(raw map[string]any) (Params, error) {
	if len(raw) == 0 {
		p := DefaultParams()
		return p, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Params{}, errors.Wrap(err, errors.ErrCodeInvalidParams, "cannot encode featurizer params")
	}
	return DecodeParams(data)
}

// Map is the inverse of ParamsFromMap.
func (p Params) Map() map[string]any {
	return map[string]any{
		"descriptors":        p.Descriptors,
		"fingerprints":       p.Fingerprints,
		"timeout":            p.Timeout,
		"replace_nan":        p.ReplaceNaN,
		"do_not_standardize": p.DoNotStandardize,
	}
}
