package neat

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
)

// populationSaveData holds only the parts of Population needed for saving. The Config is
// not saved; it is reloaded from the original file.
type populationSaveData struct {
	RunID                  string
	Networks               map[int]*Network
	Species                []speciesSaveData
	Tracker                *InnovationTracker
	InputTemplate          []Neuron
	ActionTemplate         []Neuron
	NextNetworkID          int
	Ancestors              map[int][]int
	NextSpeciesID          int
	CompatibilityThreshold float64
	Generation             int
	BestNetwork            *Network
	RandState              []byte
}

// speciesSaveData replaces the member pointers of a species by network IDs, since gob does
// not preserve pointer sharing.
type speciesSaveData struct {
	ID                    int
	Created               int
	Representative        *Network
	MemberIDs             []int
	BestAverageFitness    float64
	StepsSinceImprovement int
}

// SaveCheckpoint saves the current state of the Population to a gzip-compressed gob file.
func (p *Population) SaveCheckpoint(filePath string) error {
	randState, err := p.src.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal random state: %w", err)
	}

	saveData := populationSaveData{
		RunID:                  p.RunID,
		Networks:               p.Networks,
		Tracker:                p.Tracker,
		InputTemplate:          p.InputTemplate,
		ActionTemplate:         p.ActionTemplate,
		NextNetworkID:          p.Reproduction.NextNetworkID,
		Ancestors:              p.Reproduction.Ancestors,
		NextSpeciesID:          p.NextSpeciesID,
		CompatibilityThreshold: p.CompatibilityThreshold,
		Generation:             p.Generation,
		BestNetwork:            p.BestNetwork,
		RandState:              randState,
	}
	for _, sp := range p.SpeciesList() {
		saveData.Species = append(saveData.Species, speciesSaveData{
			ID:                    sp.ID,
			Created:               sp.Created,
			Representative:        sp.Representative,
			MemberIDs:             sp.MemberIDs(),
			BestAverageFitness:    sp.BestAverageFitness,
			StepsSinceImprovement: sp.StepsSinceImprovement,
		})
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", filePath, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	if err := gob.NewEncoder(gzWriter).Encode(saveData); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint '%s': %w", filePath, err)
	}

	p.Logger.Info("checkpoint saved", "path", filePath, "generation", p.Generation)
	return nil
}

// LoadCheckpoint loads a Population state from a checkpoint file.
// It requires the original configuration file path to reconstruct the Config object.
func LoadCheckpoint(checkpointPath string, configPath string) (*Population, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s' for checkpoint: %w", configPath, err)
	}
	return loadCheckpoint(checkpointPath, config)
}

func loadCheckpoint(checkpointPath string, config *Config) (*Population, error) {
	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gzReader.Close()

	var saveData populationSaveData
	if err := gob.NewDecoder(gzReader).Decode(&saveData); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}

	p, err := newPopulation(config, saveData.InputTemplate, saveData.ActionTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild population from checkpoint: %w", err)
	}
	if err := p.src.UnmarshalBinary(saveData.RandState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal random state: %w", err)
	}

	if saveData.Tracker != nil {
		if saveData.Tracker.Innovations == nil {
			saveData.Tracker.Innovations = make(map[ConnectionKey]int)
		}
		p.Tracker = saveData.Tracker
		p.Mutator = NewMutator(p.Mutator.Options, p.Tracker, p.rng)
	}

	p.RunID = saveData.RunID
	p.Reproduction.NextNetworkID = saveData.NextNetworkID
	for id, parents := range saveData.Ancestors {
		if parents == nil {
			parents = []int{}
		}
		p.Reproduction.Ancestors[id] = parents
	}
	p.NextSpeciesID = saveData.NextSpeciesID
	p.CompatibilityThreshold = saveData.CompatibilityThreshold
	p.Generation = saveData.Generation
	p.BestNetwork = restoreNetwork(saveData.BestNetwork)

	for id, n := range saveData.Networks {
		p.Networks[id] = restoreNetwork(n)
	}
	for _, sd := range saveData.Species {
		sp := &Species{
			ID:                    sd.ID,
			Created:               sd.Created,
			Representative:        restoreNetwork(sd.Representative),
			Members:               make(map[int]*Network, len(sd.MemberIDs)),
			BestAverageFitness:    sd.BestAverageFitness,
			StepsSinceImprovement: sd.StepsSinceImprovement,
		}
		for _, id := range sd.MemberIDs {
			n, ok := p.Networks[id]
			if !ok {
				return nil, fmt.Errorf("species %d member %d: %w", sd.ID, id, ErrNotFound)
			}
			sp.Add(n)
		}
		p.Species[sp.ID] = sp
	}

	p.Logger.Info("checkpoint loaded", "path", checkpointPath, "generation", p.Generation)
	return p, nil
}

// restoreNetwork recreates the maps gob leaves nil when they were empty.
func restoreNetwork(n *Network) *Network {
	if n == nil {
		return nil
	}
	if n.Neurons == nil {
		n.Neurons = make(map[int]*Neuron)
	}
	if n.Connections == nil {
		n.Connections = make(map[int]Connection)
	}
	if n.RecurrentConnections == nil {
		n.RecurrentConnections = make(map[int]Connection)
	}
	n.invalidate()
	return n
}
