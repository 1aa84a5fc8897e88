package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/AdleyRodrigues/financing-simulator/internal/core"
)

const (
	defaultPrincipalCents = 5000000 // R$ 50.000,00
	defaultMonthlyRate    = "0.01"  // 1% a month
)

// Plan is the repayment plan: the initial debt and the monthly interest
// rate. Loaded once at startup and immutable for the process lifetime.
type Plan struct {
	InitialPrincipal core.Money
	MonthlyRate      decimal.Decimal
}

// planFile mirrors the config.json layout of the original tool.
type planFile struct {
	DividaInicial float64 `json:"divida_inicial"`
	TaxaJuros     float64 `json:"taxa_juros"`
}

// DefaultPlan returns the documented defaults: R$ 50.000,00 at 1% a month.
func DefaultPlan() *Plan {
	return &Plan{
		InitialPrincipal: core.Money{Cents: defaultPrincipalCents},
		MonthlyRate:      decimal.RequireFromString(defaultMonthlyRate),
	}
}

func (p *Plan) Validate() error {
	if p.InitialPrincipal.Cents <= 0 {
		return fmt.Errorf("initial principal must be positive, got %d cents", p.InitialPrincipal.Cents)
	}
	if p.MonthlyRate.IsNegative() || p.MonthlyRate.GreaterThanOrEqual(decimal.New(1, 0)) {
		return fmt.Errorf("monthly rate must be in [0, 1), got %s", p.MonthlyRate)
	}
	return nil
}

// LoadPlan reads the plan file, creating it with defaults on first run.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := writeDefaultPlanFile(path); werr != nil {
			return nil, fmt.Errorf("create default plan file: %w", werr)
		}
		return DefaultPlan(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var pf planFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse plan file %s: %w", path, err)
	}

	plan := &Plan{
		InitialPrincipal: core.Money{Cents: centsFromFloat(pf.DividaInicial)},
		MonthlyRate:      decimal.NewFromFloat(pf.TaxaJuros),
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan file %s: %w", path, err)
	}
	return plan, nil
}

func writeDefaultPlanFile(path string) error {
	p := DefaultPlan()
	data, err := json.MarshalIndent(planFile{
		DividaInicial: p.InitialPrincipal.Reais(),
		TaxaJuros:     mustFloat(p.MonthlyRate),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// centsFromFloat converts a currency float to cents with half-up rounding.
func centsFromFloat(v float64) int64 {
	return decimal.NewFromFloat(v).Mul(decimal.New(100, 0)).Round(0).IntPart()
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
