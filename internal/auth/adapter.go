package auth

import (
	"context"
	"errors"

	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"

	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

// Adapter persists casbin policy rules through storage.Storage, so role
// grants live in the same database as the rest of the data.
type Adapter struct {
	storage storage.Storage
}

func NewAdapter(s storage.Storage) *Adapter {
	return &Adapter{storage: s}
}

func toRule(ptype string, fields []string) storage.CasbinRule {
	r := storage.CasbinRule{PType: ptype}
	slots := []*string{&r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5}
	for i, f := range fields {
		if i >= len(slots) {
			break
		}
		*slots[i] = f
	}
	return r
}

// LoadPolicy reads every stored rule into the casbin model.
func (a *Adapter) LoadPolicy(m model.Model) error {
	rules, err := a.storage.LoadCasbinRules(context.Background())
	if err != nil {
		return err
	}

	for _, rule := range rules {
		line := rule.PType
		for _, v := range []string{rule.V0, rule.V1, rule.V2, rule.V3, rule.V4, rule.V5} {
			if v == "" {
				break
			}
			line += ", " + v
		}
		persist.LoadPolicyLine(line, m)
	}
	return nil
}

// SavePolicy is not supported; rules are maintained incrementally through
// AddPolicy and RemovePolicy.
func (a *Adapter) SavePolicy(m model.Model) error {
	return errors.New("not implemented")
}

func (a *Adapter) AddPolicy(sec string, ptype string, rule []string) error {
	return a.storage.AddCasbinRule(context.Background(), toRule(ptype, rule))
}

func (a *Adapter) RemovePolicy(sec string, ptype string, rule []string) error {
	return a.storage.RemoveCasbinRule(context.Background(), toRule(ptype, rule))
}

func (a *Adapter) RemoveFilteredPolicy(sec string, ptype string, fieldIndex int, fieldValues ...string) error {
	return errors.New("not implemented")
}
