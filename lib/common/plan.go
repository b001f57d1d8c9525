package common

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"os"
)

type (
	// PlanUnit is one statement of a plan file
	PlanUnit struct {
		Statement string   `yaml:"statement"`
		Params    []string `yaml:"params,omitempty"`
	}

	// PlanGroup is an ordered list of units bound to one connection
	PlanGroup struct {
		Connection string     `yaml:"connection"`
		Units      []PlanUnit `yaml:"units"`
	}

	// Plan is the serialized form of an execution group context. It is used by the CLI to
	// run already planned work without a routing layer in front of the engine.
	//
	// Example:
	//
	//	execution_id: load-users
	//	in_transaction: true
	//	lock: "job:load-users"
	//	groups:
	//	  - connection: ds_0
	//	    units:
	//	      - statement: SET
	//	        params: ["user:1", "alice"]
	//	  - connection: ds_1
	//	    units:
	//	      - statement: SET
	//	        params: ["user:2", "bob"]
	Plan struct {
		ExecutionID   string      `yaml:"execution_id"`
		InTransaction bool        `yaml:"in_transaction"`
		Lock          string      `yaml:"lock,omitempty"`
		Groups        []PlanGroup `yaml:"groups"`
	}
)

// LoadPlan parses a YAML plan from r
func LoadPlan(r io.Reader) (*Plan, error) {
	var plan Plan
	if err := yaml.NewDecoder(r).Decode(&plan); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal plan")
	}

	if plan.ExecutionID == "" {
		return nil, errors.New("invalid plan: execution_id is required")
	}

	seen := make(map[string]int, len(plan.Groups))
	for i, group := range plan.Groups {
		if group.Connection == "" {
			return nil, errors.Errorf("invalid plan: group %d has no connection", i)
		}
		if prev, ok := seen[group.Connection]; ok {
			return nil, errors.Errorf("invalid plan: groups %d and %d share connection %s", prev, i, group.Connection)
		}
		seen[group.Connection] = i

		for j, unit := range group.Units {
			if unit.Statement == "" {
				return nil, errors.Errorf("invalid plan: unit %d of group %d has no statement", j, i)
			}
		}
	}

	return &plan, nil
}

// LoadPlanFile parses the YAML plan file at path
func LoadPlanFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open plan file %s", path)
	}
	defer f.Close()

	return LoadPlan(f)
}

// Connections returns the connection names in group order
func (p *Plan) Connections() []string {
	names := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		names = append(names, g.Connection)
	}
	return names
}
