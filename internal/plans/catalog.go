// Package plans описывает закрытый каталог тарифных планов и их соответствие
// ценам платёжного провайдера.
package plans

import (
	"errors"
	"fmt"

	"github.com/magabrotheeeer/subscription-checkout/internal/models"
)

// ErrUnknownPlan неизвестный идентификатор плана.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan тарифный план с данными для отображения.
type Plan struct {
	ID        models.PlanID `json:"id"`
	Name      string        `json:"name"`
	Price     int64         `json:"price"`
	PriceText string        `json:"priceText"`
	priceID   string
}

// порядок отображения совпадает с порядком в слайсе
var known = []Plan{
	{ID: models.PlanAnnually, Name: "Pay annually", Price: 10, PriceText: "$10 / month / member"},
	{ID: models.PlanMonthly, Name: "Pay monthly", Price: 12, PriceText: "$12 / month / member"},
}

// Catalog неизменяемый набор планов. Безопасен для конкурентного чтения.
type Catalog struct {
	plans   []Plan
	byID    map[models.PlanID]Plan
	byPrice map[string]models.PlanID
}

// New строит каталог по соответствию "идентификатор плана -> идентификатор цены".
// Каждый известный план обязан иметь цену.
func New(priceIDs map[string]string) (*Catalog, error) {
	const op = "plans.New"
	c := &Catalog{
		byID:    make(map[models.PlanID]Plan, len(known)),
		byPrice: make(map[string]models.PlanID, len(known)),
	}
	for _, p := range known {
		priceID := priceIDs[string(p.ID)]
		if priceID == "" {
			return nil, fmt.Errorf("%s: no price configured for plan %q", op, p.ID)
		}
		p.priceID = priceID
		c.plans = append(c.plans, p)
		c.byID[p.ID] = p
		c.byPrice[priceID] = p.ID
	}
	return c, nil
}

// Lookup возвращает план по идентификатору.
func (c *Catalog) Lookup(id string) (Plan, error) {
	p, ok := c.byID[models.PlanID(id)]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

// PriceID возвращает идентификатор цены провайдера для плана.
func (c *Catalog) PriceID(id string) (string, error) {
	p, err := c.Lookup(id)
	if err != nil {
		return "", err
	}
	return p.priceID, nil
}

// ByPriceID обратный поиск плана по цене провайдера.
func (c *Catalog) ByPriceID(priceID string) (models.PlanID, bool) {
	id, ok := c.byPrice[priceID]
	return id, ok
}

// All возвращает планы в порядке отображения.
func (c *Catalog) All() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
