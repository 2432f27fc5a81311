package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"

	"github.com/bher20/wattscope/internal/storage"
)

// Adapter implements the Casbin persist.Adapter interface using storage.Storage.
type Adapter struct {
	storage storage.Storage
}

// NewAdapter returns a new Casbin adapter.
func NewAdapter(s storage.Storage) *Adapter {
	return &Adapter{storage: s}
}

// LoadPolicy loads all policy rules from the storage.
func (a *Adapter) LoadPolicy(m model.Model) error {
	rules, err := a.storage.LoadCasbinRules(context.Background())
	if err != nil {
		return err
	}
	for _, rule := range rules {
		line := strings.Join(append([]string{rule.PType}, rule.Values()...), ", ")
		if err := persist.LoadPolicyLine(line, m); err != nil {
			return err
		}
	}
	return nil
}

// SavePolicy is not supported; policies are persisted incrementally through
// AddPolicy and RemovePolicy.
func (a *Adapter) SavePolicy(m model.Model) error {
	return errors.New("not implemented")
}

// AddPolicy adds a policy rule to the storage.
func (a *Adapter) AddPolicy(sec string, ptype string, rule []string) error {
	return a.storage.AddCasbinRule(context.Background(), storage.NewCasbinRule(ptype, rule))
}

// RemovePolicy removes a policy rule from the storage.
func (a *Adapter) RemovePolicy(sec string, ptype string, rule []string) error {
	return a.storage.RemoveCasbinRule(context.Background(), storage.NewCasbinRule(ptype, rule))
}

// RemoveFilteredPolicy removes the stored rules of ptype whose fields, starting
// at fieldIndex, match fieldValues. Empty filter values match anything.
func (a *Adapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	ctx := context.Background()
	rules, err := a.storage.LoadCasbinRules(ctx)
	if err != nil {
		return err
	}
	for _, r := range rules {
		if r.PType != ptype || !matchesFilter(r, fieldIndex, fieldValues) {
			continue
		}
		if err := a.storage.RemoveCasbinRule(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func matchesFilter(r storage.CasbinRule, fieldIndex int, fieldValues []string) bool {
	fields := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	for i, v := range fieldValues {
		idx := fieldIndex + i
		if idx < 0 || idx >= len(fields) {
			return false
		}
		if v != "" && fields[idx] != v {
			return false
		}
	}
	return true
}
