package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valeo-erp/pricing-service/internal/pricing"
)

// LoadRefData takes the reference snapshot one calculation evaluates
// against: the tenant's eligible price lists, the customer's condition
// sets, candidate formulas for the SKU, and all live charge/tax entries.
// Activity and validity windows are filtered at the database; the engine
// re-checks them against its own evaluation instant.
func (s *Store) LoadRefData(ctx context.Context, customerID, sku string, now time.Time) (pricing.RefData, error) {
	var ref pricing.RefData

	lists, err := s.activePriceLists(ctx, now)
	if err != nil {
		return ref, err
	}
	ref.PriceLists = lists

	sets, err := s.conditionSets(ctx, customerID, now)
	if err != nil {
		return ref, err
	}
	ref.ConditionSets = sets

	formulas, err := s.formulas(ctx, sku, now)
	if err != nil {
		return ref, err
	}
	ref.Formulas = formulas

	charges, err := s.taxChargeRefs(ctx, now)
	if err != nil {
		return ref, err
	}
	ref.Charges = charges

	return ref, nil
}

func (s *Store) activePriceLists(ctx context.Context, now time.Time) ([]pricing.PriceList, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	const listQuery = `
		SELECT id, tenant_id, name, status, valid_from, valid_to
		FROM price_lists
		WHERE tenant_id = $1
		  AND status = 'Active'
		  AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to >= $2)
		ORDER BY valid_from DESC`
	rows, err := s.Pool.Query(ctx, listQuery, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("query price lists: %w", err)
	}
	defer rows.Close()

	var lists []pricing.PriceList
	for rows.Next() {
		var list pricing.PriceList
		if err := rows.Scan(&list.ID, &list.TenantID, &list.Name, &list.Status, &list.ValidFrom, &list.ValidTo); err != nil {
			return nil, fmt.Errorf("scan price list: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lists {
		lines, err := s.priceListLines(ctx, lists[i].ID)
		if err != nil {
			return nil, err
		}
		lists[i].Lines = lines
	}
	return lists, nil
}

func (s *Store) priceListLines(ctx context.Context, listID string) ([]pricing.PriceListLine, error) {
	const query = `
		SELECT sku, description, base_price, currency, uom, active, tier_breaks
		FROM price_list_lines
		WHERE price_list_id = $1
		ORDER BY position`
	rows, err := s.Pool.Query(ctx, query, listID)
	if err != nil {
		return nil, fmt.Errorf("query price list lines: %w", err)
	}
	defer rows.Close()

	var lines []pricing.PriceListLine
	for rows.Next() {
		var line pricing.PriceListLine
		var tiers []byte
		if err := rows.Scan(&line.SKU, &line.Description, &line.BasePrice, &line.Currency, &line.UOM, &line.Active, &tiers); err != nil {
			return nil, fmt.Errorf("scan price list line: %w", err)
		}
		if len(tiers) > 0 {
			if err := json.Unmarshal(tiers, &line.TierBreaks); err != nil {
				return nil, fmt.Errorf("decode tier breaks for %s: %w", line.SKU, err)
			}
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (s *Store) conditionSets(ctx context.Context, customerID string, now time.Time) ([]pricing.ConditionSet, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	const setQuery = `
		SELECT id, tenant_id, customer_id, name, priority, conflict_strategy, active, valid_from, valid_to
		FROM condition_sets
		WHERE tenant_id = $1
		  AND customer_id = $2
		  AND active = TRUE
		  AND valid_from <= $3
		  AND (valid_to IS NULL OR valid_to >= $3)
		ORDER BY priority`
	rows, err := s.Pool.Query(ctx, setQuery, tenantID, customerID, now)
	if err != nil {
		return nil, fmt.Errorf("query condition sets: %w", err)
	}
	defer rows.Close()

	var sets []pricing.ConditionSet
	for rows.Next() {
		var set pricing.ConditionSet
		if err := rows.Scan(&set.ID, &set.TenantID, &set.CustomerID, &set.Name, &set.Priority,
			&set.ConflictStrategy, &set.Active, &set.ValidFrom, &set.ValidTo); err != nil {
			return nil, fmt.Errorf("scan condition set: %w", err)
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sets {
		rules, err := s.conditionRules(ctx, sets[i].ID)
		if err != nil {
			return nil, err
		}
		sets[i].Rules = rules
	}
	return sets, nil
}

func (s *Store) conditionRules(ctx context.Context, setID string) ([]pricing.ConditionRule, error) {
	const query = `
		SELECT id, rule_type, scope, selector, method, value, min_qty, max_qty,
		       channel, valid_from, valid_to, stackable, description
		FROM condition_rules
		WHERE set_id = $1
		ORDER BY position`
	rows, err := s.Pool.Query(ctx, query, setID)
	if err != nil {
		return nil, fmt.Errorf("query condition rules: %w", err)
	}
	defer rows.Close()

	var rules []pricing.ConditionRule
	for rows.Next() {
		var rule pricing.ConditionRule
		if err := rows.Scan(&rule.ID, &rule.Type, &rule.Scope, &rule.Selector, &rule.Method, &rule.Value,
			&rule.MinQty, &rule.MaxQty, &rule.Channel, &rule.ValidFrom, &rule.ValidTo,
			&rule.Stackable, &rule.Description); err != nil {
			return nil, fmt.Errorf("scan condition rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *Store) formulas(ctx context.Context, sku string, now time.Time) ([]pricing.DynamicFormula, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
		SELECT id, tenant_id, sku, commodity, expression, inputs, round_decimals, cap, active, valid_from, valid_to
		FROM dynamic_formulas
		WHERE tenant_id = $1
		  AND active = TRUE
		  AND (sku = $2 OR commodity = $3)
		  AND valid_from <= $4
		  AND (valid_to IS NULL OR valid_to >= $4)`
	rows, err := s.Pool.Query(ctx, query, tenantID, sku, pricing.CommodityOf(sku), now)
	if err != nil {
		return nil, fmt.Errorf("query dynamic formulas: %w", err)
	}
	defer rows.Close()

	var formulas []pricing.DynamicFormula
	for rows.Next() {
		var f pricing.DynamicFormula
		var inputs []byte
		if err := rows.Scan(&f.ID, &f.TenantID, &f.SKU, &f.Commodity, &f.Expression, &inputs,
			&f.RoundDecimals, &f.Cap, &f.Active, &f.ValidFrom, &f.ValidTo); err != nil {
			return nil, fmt.Errorf("scan dynamic formula: %w", err)
		}
		if len(inputs) > 0 {
			if err := json.Unmarshal(inputs, &f.Inputs); err != nil {
				return nil, fmt.Errorf("decode formula inputs for %s: %w", f.ID, err)
			}
		}
		formulas = append(formulas, f)
	}
	return formulas, rows.Err()
}

func (s *Store) taxChargeRefs(ctx context.Context, now time.Time) ([]pricing.TaxChargeRef, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
		SELECT id, tenant_id, code, name, kind, method, rate_or_amount, scope, scope_value, active, valid_from, valid_to
		FROM tax_charge_refs
		WHERE tenant_id = $1
		  AND active = TRUE
		  AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to >= $2)
		ORDER BY kind, code`
	rows, err := s.Pool.Query(ctx, query, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("query tax/charge refs: %w", err)
	}
	defer rows.Close()

	var refs []pricing.TaxChargeRef
	for rows.Next() {
		var ref pricing.TaxChargeRef
		if err := rows.Scan(&ref.ID, &ref.TenantID, &ref.Code, &ref.Name, &ref.Kind, &ref.Method,
			&ref.RateOrAmount, &ref.Scope, &ref.ScopeValue, &ref.Active, &ref.ValidFrom, &ref.ValidTo); err != nil {
			return nil, fmt.Errorf("scan tax/charge ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
