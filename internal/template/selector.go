package template

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/foldprep/api/internal/client"
	"github.com/foldprep/api/internal/model"
)

// saltBridgeMaxDist is the distance cutoff (in Angstrom) below which the
// 17-24 salt bridge is considered formed. Fixed policy constant.
const saltBridgeMaxDist = 4.5

// Selector filters the rows of a search result table into an ordered,
// deduplicated candidate list, consulting the activation-state and
// conformation databases as the criteria require.
type Selector struct {
	states        client.StateProvider
	conformations client.ConformationProvider
}

// NewSelector creates a new template selector
func NewSelector(states client.StateProvider, conformations client.ConformationProvider) *Selector {
	return &Selector{
		states:        states,
		conformations: conformations,
	}
}

// Select scans the whitespace-delimited result table at tablePath in file
// order and returns the accepted target codes. No PDB id (case-insensitive,
// chain-stripped) appears twice, and excluded ids are never accepted. The
// resulting list is persisted comma-joined to sidecarPath so a later
// reshuffle can skip the database queries.
//
// Classification lookups are recorded per PDB id whatever their outcome, so
// a rejected id is not queried again for later rows.
func (s *Selector) Select(ctx context.Context, tablePath, sidecarPath string, crit *Criteria) ([]string, error) {
	f, err := os.Open(tablePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open result table: %w", err)
	}
	defer f.Close()

	log.Printf("[templates] seq\tpdb\tcid\tevalue")

	var accepted []string
	seen := map[string]bool{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		target := fields[1]
		pdbID := normalizePDBID(target)

		ok, err := s.acceptRow(ctx, crit, target, pdbID, seen)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		accepted = append(accepted, target)
		seen[pdbID] = true
		logRow(fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result table: %w", err)
	}

	if err := SaveCandidates(sidecarPath, accepted); err != nil {
		return nil, err
	}
	return accepted, nil
}

// acceptRow decides a single row. seen is consulted but only mutated here
// for classification lookups; acceptance marking happens in the caller.
func (s *Selector) acceptRow(ctx context.Context, crit *Criteria, target, pdbID string, seen map[string]bool) (bool, error) {
	switch crit.Mode {
	case model.TemplateModeNone:
		return false, nil

	case model.TemplateModeList:
		if seen[pdbID] || crit.Excluded(pdbID) {
			return false, nil
		}
		for _, code := range crit.Codes {
			if code == target {
				return true, nil
			}
		}
		return false, nil

	case model.TemplateModeState:
		if seen[pdbID] || crit.Excluded(pdbID) {
			return false, nil
		}
		seen[pdbID] = true

		st, err := s.states.StructureState(ctx, pdbID)
		if err != nil {
			return false, &model.ServiceError{Service: "gpcrdb", Message: "structure lookup failed", Err: err}
		}
		if !st.Found {
			return false, nil
		}
		if st.State == string(crit.State) || st.SignallingProteinType == string(crit.State) {
			return true, nil
		}
		return false, nil

	case model.TemplateModeConformation:
		if seen[pdbID] || crit.Excluded(pdbID) {
			return false, nil
		}
		seen[pdbID] = true

		conf, err := s.conformations.StructureConformation(ctx, pdbID)
		if err != nil {
			return false, &model.ServiceError{Service: "klifs", Message: "conformation lookup failed", Err: err}
		}
		if !conf.Found {
			return false, nil
		}

		observedSalt := "no"
		if conf.SaltBridgeDist > 0 && conf.SaltBridgeDist <= saltBridgeMaxDist {
			observedSalt = "yes"
		}

		// Conjunction of the constraints that are present; a nil field is a
		// wildcard and is vacuously true. This covers all eight effective
		// combinations without enumerating them.
		return matches(crit.DFG, conf.DFG) &&
			matches(crit.ACHelix, conf.ACHelix) &&
			matches(crit.Salt, observedSalt), nil
	}

	return false, nil
}

func matches(constraint *string, observed string) bool {
	return constraint == nil || *constraint == observed
}

func logRow(fields []string) {
	evalue := ""
	if len(fields) > 10 {
		evalue = fields[10]
	}
	cid := ""
	if len(fields) > 2 {
		cid = fields[2]
	}
	log.Printf("[templates] %s\t%s\t%s\t%s", fields[0], fields[1], cid, evalue)
}
