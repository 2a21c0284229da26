package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/samuelfneumann/trafficrl/environment"
)

// Type represents a specific type of an agent Config. Config's with
// this type can create Agents of the corresponding type.
type Type string

const (
	EGreedyDeepQMLP   Type = "EGreedyDeepQ-MLP"
	CategoricalPPOMLP Type = "CategoricalPPO-MLP"
)

// Config represents a configuration for creating an agent
type Config interface {
	// CreateAgent creates the agent that the config describes
	CreateAgent(env environment.Environment, seed uint64) (Agent, error)

	// Type returns the Type of agent the Config creates
	Type() Type

	// Validate returns an error describing whether or not the
	// configuration is valid
	Validate() error
}

// registeredTypes maps agent Types to their concrete Config types.
//
// No Types are registered with this package upon initialization. Each
// agent package registers its own Type to avoid circular imports.
var registeredTypes = make(map[Type]reflect.Type)

// Register registers an agent's Type with a concrete Config type so
// that a TypedConfig of type agentType is deserialized into the
// concrete type of config
func Register(agentType Type, config Config) {
	registeredTypes[agentType] = reflect.TypeOf(config)
}

// Registered returns the registered agent Types in sorted order
func Registered() []Type {
	types := make([]Type, 0, len(registeredTypes))
	for t := range registeredTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// TypedConfig stores a Config together with its Type so that the Config
// can be deserialized into its concrete type without knowing the type
// beforehand
type TypedConfig struct {
	Type   Type
	Config Config
}

// NewTypedConfig types the argument Config
func NewTypedConfig(c Config) TypedConfig {
	return TypedConfig{Type: c.Type(), Config: c}
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (t *TypedConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Type
		Config json.RawMessage
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}

	ty, ok := registeredTypes[raw.Type]
	if !ok {
		return fmt.Errorf("unmarshalJSON: agent type %q is not registered",
			raw.Type)
	}

	value := reflect.New(ty)
	if err := json.Unmarshal(raw.Config, value.Interface()); err != nil {
		return fmt.Errorf("unmarshalJSON: could not decode %v config: %v",
			raw.Type, err)
	}

	t.Type = raw.Type
	t.Config = value.Elem().Interface().(Config)
	return nil
}
