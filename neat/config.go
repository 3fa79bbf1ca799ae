package neat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Config stores the configuration parameters for the NEAT algorithm.
type Config struct {
	Neat         NeatConfig         `yaml:"neat"`
	Network      NetworkConfig      `yaml:"network"`
	Mutation     MutationConfig     `yaml:"mutation"`
	Speciation   SpeciationConfig   `yaml:"speciation"`
	Reproduction ReproductionConfig `yaml:"reproduction"`
	Stagnation   StagnationConfig   `yaml:"stagnation"`
}

// NeatConfig holds run-level parameters.
type NeatConfig struct {
	PopSize              int     `ini:"pop_size" yaml:"pop_size"`
	FitnessThreshold     float64 `ini:"fitness_threshold" yaml:"fitness_threshold"`
	NoFitnessTermination bool    `ini:"no_fitness_termination" yaml:"no_fitness_termination"`
	Seed                 uint64  `ini:"seed" yaml:"seed"`       // 0 picks a time-based seed
	Workers              int     `ini:"workers" yaml:"workers"` // 0 uses GOMAXPROCS
}

// NetworkConfig describes the neuron templates shared by every network of a population.
type NetworkConfig struct {
	NumInputs          int    `ini:"num_inputs" yaml:"num_inputs"`
	Bias               bool   `ini:"bias" yaml:"bias"` // Appends a bias neuron after the inputs
	NumOutputs         int    `ini:"num_outputs" yaml:"num_outputs"`
	OutputActivation   string `ini:"output_activation" yaml:"output_activation"`
	AllowUselessHidden bool   `ini:"allow_useless_hidden" yaml:"allow_useless_hidden"`
}

// MutationConfig holds the independent probability of every mutation operator.
type MutationConfig struct {
	AddConnectionProb       float64  `ini:"add_connection_prob" yaml:"add_connection_prob"`
	RemoveConnectionProb    float64  `ini:"remove_connection_prob" yaml:"remove_connection_prob"`
	AddNeuronProb           float64  `ini:"add_neuron_prob" yaml:"add_neuron_prob"`
	RemoveNeuronProb        float64  `ini:"remove_neuron_prob" yaml:"remove_neuron_prob"`
	RandomFunctionProb      float64  `ini:"random_function_prob" yaml:"random_function_prob"`
	AdjustWeightProb        float64  `ini:"adjust_weight_prob" yaml:"adjust_weight_prob"`
	ToggleConnectionProb    float64  `ini:"toggle_connection_prob" yaml:"toggle_connection_prob"`
	WeightReplaceProb       float64  `ini:"weight_replace_prob" yaml:"weight_replace_prob"`
	WeightAdjustPower       float64  `ini:"weight_adjust_power" yaml:"weight_adjust_power"`
	HiddenActivationOptions []string `ini:"hidden_activation_options" delim:" " yaml:"hidden_activation_options"`
	DefaultActivation       string   `ini:"default_activation" yaml:"default_activation"`
	RandomDefaultActivation bool     `ini:"random_default_activation" yaml:"random_default_activation"`
	MaxAttempts             int      `ini:"max_attempts" yaml:"max_attempts"`
}

// SpeciationConfig holds the distance coefficients and the adaptive threshold controller.
type SpeciationConfig struct {
	CompatibilityThreshold float64 `ini:"compatibility_threshold" yaml:"compatibility_threshold"`
	DisjointCoefficient    float64 `ini:"disjoint_coefficient" yaml:"disjoint_coefficient"`
	WeightCoefficient      float64 `ini:"weight_coefficient" yaml:"weight_coefficient"`
	TargetSpecies          int     `ini:"target_species" yaml:"target_species"` // 0 disables threshold control
	ThresholdStep          float64 `ini:"threshold_step" yaml:"threshold_step"`
	MinThreshold           float64 `ini:"min_threshold" yaml:"min_threshold"`
	UseAdjustedFitness     bool    `ini:"use_adjusted_fitness" yaml:"use_adjusted_fitness"`
}

// ReproductionConfig holds parameters related to reproduction.
type ReproductionConfig struct {
	RemoveWorstFraction float64 `ini:"remove_worst_fraction" yaml:"remove_worst_fraction"`
	CrossoverProb       float64 `ini:"crossover_prob" yaml:"crossover_prob"`
	EnableProb          float64 `ini:"enable_prob" yaml:"enable_prob"`
	EliteMinMembers     int     `ini:"elite_min_members" yaml:"elite_min_members"`
}

// StagnationConfig holds parameters related to species stagnation.
type StagnationConfig struct {
	SpeciesFitnessFunc string `ini:"species_fitness_func" yaml:"species_fitness_func"`
	MaxStagnation      int    `ini:"max_stagnation" yaml:"max_stagnation"`
	SpeciesElitism     int    `ini:"species_elitism" yaml:"species_elitism"` // Species kept when all stagnate
}

// DefaultConfig returns the settings of the 3-input XOR benchmark.
func DefaultConfig() *Config {
	mutation := DefaultMutateOptions()
	names := make([]string, len(mutation.HiddenFunctions))
	for i, fn := range mutation.HiddenFunctions {
		names[i] = fn.String()
	}
	return &Config{
		Neat: NeatConfig{
			PopSize:          200,
			FitnessThreshold: 0.975,
		},
		Network: NetworkConfig{
			NumInputs:        3,
			Bias:             true,
			NumOutputs:       1,
			OutputActivation: "sigmoid",
		},
		Mutation: MutationConfig{
			AddConnectionProb:       mutation.AddConnection,
			RemoveConnectionProb:    mutation.RemoveConnection,
			AddNeuronProb:           mutation.AddNeuron,
			RemoveNeuronProb:        mutation.RemoveNeuron,
			RandomFunctionProb:      mutation.RandomFunction,
			AdjustWeightProb:        mutation.AdjustWeight,
			ToggleConnectionProb:    mutation.ToggleConnection,
			WeightReplaceProb:       mutation.WeightReplace,
			WeightAdjustPower:       mutation.WeightAdjustPower,
			HiddenActivationOptions: names,
			DefaultActivation:       mutation.DefaultFunction.String(),
			RandomDefaultActivation: mutation.RandomDefaultFunction,
			MaxAttempts:             mutation.MaxAttempts,
		},
		Speciation: SpeciationConfig{
			CompatibilityThreshold: 0.5,
			DisjointCoefficient:    1.0,
			WeightCoefficient:      0.4,
			TargetSpecies:          10,
			ThresholdStep:          0.05,
			MinThreshold:           0.05,
		},
		Reproduction: ReproductionConfig{
			RemoveWorstFraction: 0.8,
			CrossoverProb:       0.75,
			EnableProb:          0.25,
			EliteMinMembers:     5,
		},
		Stagnation: StagnationConfig{
			SpeciesFitnessFunc: "mean",
			MaxStagnation:      20,
			SpeciesElitism:     2,
		},
	}
}

// LoadConfig reads a configuration file on top of DefaultConfig. Files ending in .yaml or
// .yml are parsed as YAML, anything else as INI.
func LoadConfig(filePath string) (*Config, error) {
	config := DefaultConfig()

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
		}
	default:
		if err := loadINI(filePath, config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadINI(filePath string, config *Config) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, filePath)
	if err != nil {
		return fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}

	sections := []struct {
		name   string
		target any
	}{
		{"NEAT", &config.Neat},
		{"Network", &config.Network},
		{"Mutation", &config.Mutation},
		{"Speciation", &config.Speciation},
		{"Reproduction", &config.Reproduction},
		{"Stagnation", &config.Stagnation},
	}
	for _, s := range sections {
		if err := cfg.Section(s.name).MapTo(s.target); err != nil {
			return fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	config.Network.OutputActivation = cleanIniString(config.Network.OutputActivation)
	config.Mutation.DefaultActivation = cleanIniString(config.Mutation.DefaultActivation)
	config.Stagnation.SpeciesFitnessFunc = cleanIniString(config.Stagnation.SpeciesFitnessFunc)
	options := config.Mutation.HiddenActivationOptions[:0]
	for _, opt := range config.Mutation.HiddenActivationOptions {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	config.Mutation.HiddenActivationOptions = options
	return nil
}

// Validate checks ranges and names and returns the first problem found.
func (c *Config) Validate() error {
	if c.Neat.PopSize <= 0 {
		return fmt.Errorf("config error: pop_size must be positive")
	}
	if c.Neat.Workers < 0 {
		return fmt.Errorf("config error: workers cannot be negative")
	}
	if c.Network.NumInputs < 0 || (c.Network.NumInputs == 0 && !c.Network.Bias) {
		return fmt.Errorf("config error: num_inputs must be positive")
	}
	if c.Network.NumOutputs <= 0 {
		return fmt.Errorf("config error: num_outputs must be positive")
	}
	if _, err := ParseActivationFunction(c.Network.OutputActivation); err != nil {
		return fmt.Errorf("config error: output_activation: %w", err)
	}

	probs := []struct {
		name  string
		value float64
	}{
		{"add_connection_prob", c.Mutation.AddConnectionProb},
		{"remove_connection_prob", c.Mutation.RemoveConnectionProb},
		{"add_neuron_prob", c.Mutation.AddNeuronProb},
		{"remove_neuron_prob", c.Mutation.RemoveNeuronProb},
		{"random_function_prob", c.Mutation.RandomFunctionProb},
		{"adjust_weight_prob", c.Mutation.AdjustWeightProb},
		{"toggle_connection_prob", c.Mutation.ToggleConnectionProb},
		{"weight_replace_prob", c.Mutation.WeightReplaceProb},
		{"remove_worst_fraction", c.Reproduction.RemoveWorstFraction},
		{"crossover_prob", c.Reproduction.CrossoverProb},
		{"enable_prob", c.Reproduction.EnableProb},
	}
	for _, p := range probs {
		if p.value < 0 || p.value > 1 {
			return fmt.Errorf("config error: %s must be between 0 and 1", p.name)
		}
	}
	if c.Mutation.WeightAdjustPower < 0 {
		return fmt.Errorf("config error: weight_adjust_power cannot be negative")
	}
	if c.Mutation.MaxAttempts <= 0 {
		return fmt.Errorf("config error: max_attempts must be positive")
	}
	if _, err := c.Mutation.Options(); err != nil {
		return err
	}

	if c.Speciation.CompatibilityThreshold < 0 {
		return fmt.Errorf("config error: compatibility_threshold cannot be negative")
	}
	if c.Speciation.DisjointCoefficient < 0 || c.Speciation.WeightCoefficient < 0 {
		return fmt.Errorf("config error: distance coefficients cannot be negative")
	}
	if c.Speciation.TargetSpecies < 0 {
		return fmt.Errorf("config error: target_species cannot be negative")
	}
	if c.Speciation.ThresholdStep < 0 {
		return fmt.Errorf("config error: threshold_step cannot be negative")
	}
	if c.Speciation.MinThreshold <= 0 {
		return fmt.Errorf("config error: min_threshold must be positive")
	}
	if c.Reproduction.EliteMinMembers < 0 {
		return fmt.Errorf("config error: elite_min_members cannot be negative")
	}

	if _, ok := StatFunctions[strings.ToLower(c.Stagnation.SpeciesFitnessFunc)]; !ok {
		return fmt.Errorf("config error: invalid species_fitness_func '%s'", c.Stagnation.SpeciesFitnessFunc)
	}
	c.Stagnation.SpeciesFitnessFunc = strings.ToLower(c.Stagnation.SpeciesFitnessFunc)
	if c.Stagnation.MaxStagnation <= 0 {
		return fmt.Errorf("config error: max_stagnation must be positive")
	}
	if c.Stagnation.SpeciesElitism <= 0 {
		return fmt.Errorf("config error: species_elitism must be positive")
	}
	return nil
}

// Options converts the section into MutateOptions.
func (mc *MutationConfig) Options() (MutateOptions, error) {
	def, err := ParseActivationFunction(mc.DefaultActivation)
	if err != nil {
		return MutateOptions{}, fmt.Errorf("config error: default_activation: %w", err)
	}
	pool := make([]ActivationFunction, 0, len(mc.HiddenActivationOptions))
	for _, name := range mc.HiddenActivationOptions {
		fn, err := ParseActivationFunction(name)
		if err != nil {
			return MutateOptions{}, fmt.Errorf("config error: hidden_activation_options: %w", err)
		}
		pool = append(pool, fn)
	}
	return MutateOptions{
		AddConnection:         mc.AddConnectionProb,
		RemoveConnection:      mc.RemoveConnectionProb,
		AddNeuron:             mc.AddNeuronProb,
		RemoveNeuron:          mc.RemoveNeuronProb,
		RandomFunction:        mc.RandomFunctionProb,
		AdjustWeight:          mc.AdjustWeightProb,
		ToggleConnection:      mc.ToggleConnectionProb,
		WeightReplace:         mc.WeightReplaceProb,
		WeightAdjustPower:     mc.WeightAdjustPower,
		HiddenFunctions:       pool,
		DefaultFunction:       def,
		RandomDefaultFunction: mc.RandomDefaultActivation,
		MaxAttempts:           mc.MaxAttempts,
	}, nil
}

// DistanceOptions returns the distance coefficients of the section.
func (sc *SpeciationConfig) DistanceOptions() DistanceOptions {
	return DistanceOptions{DisjointFactor: sc.DisjointCoefficient, WeightFactor: sc.WeightCoefficient}
}

// Templates builds the input/bias and action neuron templates. Inputs take IDs 0..n-1, the
// bias neuron (if any) follows, and action neurons take the next IDs.
func (c *Config) Templates() (inputs, actions []Neuron, err error) {
	fn, err := ParseActivationFunction(c.Network.OutputActivation)
	if err != nil {
		return nil, nil, fmt.Errorf("config error: output_activation: %w", err)
	}
	id := 0
	for i := 0; i < c.Network.NumInputs; i++ {
		inputs = append(inputs, NewNeuron(id, Input, Identity))
		id++
	}
	if c.Network.Bias {
		inputs = append(inputs, NewNeuron(id, Bias, Identity))
		id++
	}
	for i := 0; i < c.Network.NumOutputs; i++ {
		actions = append(actions, NewNeuron(id, Action, fn))
		id++
	}
	return inputs, actions, nil
}

// cleanIniString removes inline comments and trims whitespace from a string read from INI.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
