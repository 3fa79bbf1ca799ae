package neat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	opts, err := cfg.Mutation.Options()
	require.NoError(t, err)
	assert.Equal(t, DefaultMutateOptions(), opts)
}

func TestLoadConfigINI(t *testing.T) {
	path := writeConfig(t, "run-config", `
[NEAT]
pop_size = 50
seed     = 7

[Network]
num_inputs        = 2
bias              = false
output_activation = tanh ; inline comment

[Mutation]
hidden_activation_options = relu  gaussian
default_activation        = relu

[Stagnation]
species_fitness_func = MAX
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Neat.PopSize)
	assert.Equal(t, uint64(7), cfg.Neat.Seed)
	assert.Equal(t, 2, cfg.Network.NumInputs)
	assert.False(t, cfg.Network.Bias)
	assert.Equal(t, "tanh", cfg.Network.OutputActivation)
	assert.Equal(t, []string{"relu", "gaussian"}, cfg.Mutation.HiddenActivationOptions)
	assert.Equal(t, "max", cfg.Stagnation.SpeciesFitnessFunc)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Neat.FitnessThreshold, cfg.Neat.FitnessThreshold)
	assert.Equal(t, defaults.Speciation, cfg.Speciation)
	assert.Equal(t, defaults.Reproduction, cfg.Reproduction)
	assert.Equal(t, defaults.Mutation.AddNeuronProb, cfg.Mutation.AddNeuronProb)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
neat:
  pop_size: 30
speciation:
  target_species: 0
mutation:
  hidden_activation_options: [sigmoid, latch]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Neat.PopSize)
	assert.Zero(t, cfg.Speciation.TargetSpecies)
	assert.Equal(t, []string{"sigmoid", "latch"}, cfg.Mutation.HiddenActivationOptions)
	assert.Equal(t, 3, cfg.Network.NumInputs)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeConfig(t, "bad-config", "[NEAT]\npop_size = 0\n")
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "pop_size")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		message string
	}{
		{"probability above one", func(c *Config) { c.Mutation.AddNeuronProb = 1.5 }, "add_neuron_prob"},
		{"negative probability", func(c *Config) { c.Reproduction.EnableProb = -0.1 }, "enable_prob"},
		{"unknown output activation", func(c *Config) { c.Network.OutputActivation = "softmax" }, "output_activation"},
		{"unknown hidden activation", func(c *Config) { c.Mutation.HiddenActivationOptions = []string{"nope"} }, "hidden_activation_options"},
		{"no outputs", func(c *Config) { c.Network.NumOutputs = 0 }, "num_outputs"},
		{"no inputs", func(c *Config) { c.Network.NumInputs, c.Network.Bias = 0, false }, "num_inputs"},
		{"non-positive min threshold", func(c *Config) { c.Speciation.MinThreshold = 0 }, "min_threshold"},
		{"unknown fitness function", func(c *Config) { c.Stagnation.SpeciesFitnessFunc = "mode" }, "species_fitness_func"},
		{"no species elitism", func(c *Config) { c.Stagnation.SpeciesElitism = 0 }, "species_elitism"},
		{"no attempts", func(c *Config) { c.Mutation.MaxAttempts = 0 }, "max_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestConfigTemplates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.NumOutputs = 2
	cfg.Network.OutputActivation = "tanh"

	inputs, actions, err := cfg.Templates()
	require.NoError(t, err)
	require.Len(t, inputs, 4)
	require.Len(t, actions, 2)
	for i := 0; i < 3; i++ {
		assert.Equal(t, NewNeuron(i, Input, Identity), inputs[i])
	}
	assert.Equal(t, NewNeuron(3, Bias, Identity), inputs[3])
	assert.Equal(t, NewNeuron(4, Action, Tanh), actions[0])
	assert.Equal(t, NewNeuron(5, Action, Tanh), actions[1])

	cfg.Network.Bias = false
	inputs, actions, err = cfg.Templates()
	require.NoError(t, err)
	assert.Len(t, inputs, 3)
	assert.Equal(t, 3, actions[0].ID)
}

func TestShippedExampleConfigs(t *testing.T) {
	ini, err := LoadConfig("../examples/xor/configs/xor-config")
	require.NoError(t, err)
	yml, err := LoadConfig("../examples/xor/configs/xor.yaml")
	require.NoError(t, err)

	assert.Equal(t, uint64(42), ini.Neat.Seed)
	assert.Equal(t, ini.Neat, yml.Neat)
	assert.Equal(t, ini.Network, yml.Network)
	assert.Equal(t, ini.Speciation, yml.Speciation)
	assert.Equal(t, ini.Stagnation, yml.Stagnation)
	assert.Equal(t, ini.Mutation, yml.Mutation)
	assert.Equal(t, ini.Reproduction, yml.Reproduction)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Mutation, ini.Mutation)
	assert.Equal(t, defaults.Reproduction, ini.Reproduction)
	assert.Equal(t, defaults.Stagnation, ini.Stagnation)
}
