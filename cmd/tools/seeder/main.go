package main

import (
	"context"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

// Seeds a demo tenant with a price list, condition rules, a dynamic
// formula, charges and a webhook subscription for local development.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close(ctx)

	tenantID := "demo"
	log.Printf("Seeding tenant %q", tenantID)

	seedPriceList(ctx, conn, tenantID)
	seedConditions(ctx, conn, tenantID)
	seedFormulas(ctx, conn, tenantID)
	seedCharges(ctx, conn, tenantID)
	seedWebhooks(ctx, conn, tenantID)

	log.Println("Seeding completed successfully!")
}

func seedPriceList(ctx context.Context, conn *pgx.Conn, tenantID string) {
	log.Println("Seeding price list...")
	var listID string
	err := conn.QueryRow(ctx, `
		INSERT INTO price_lists (tenant_id, name, status, valid_from)
		VALUES ($1, 'Commodities 2026', 'Active', now() - interval '1 day')
		ON CONFLICT (tenant_id, name) DO UPDATE SET status = EXCLUDED.status
		RETURNING id`, tenantID).Scan(&listID)
	if err != nil {
		log.Fatalf("Failed to seed price list: %v", err)
	}

	lines := []struct {
		SKU   string
		Desc  string
		Price string
		UOM   string
		Tiers string
	}{
		{"WHEAT-001", "Milling wheat, grade A", "10.00", "t", `[{"minQty":"0","price":"10.00"},{"minQty":"100","price":"8.00"}]`},
		{"WHEAT-002", "Feed wheat", "8.50", "t", `[{"minQty":"0","price":"8.50"}]`},
		{"CORN-001", "Yellow corn", "7.25", "t", `[{"minQty":"0","price":"7.25"},{"minQty":"250","price":"6.90"}]`},
		{"RAPE-001", "Rapeseed", "14.75", "t", `[]`},
	}
	for i, line := range lines {
		_, err := conn.Exec(ctx, `
			INSERT INTO price_list_lines (price_list_id, position, sku, description, base_price, currency, uom, active, tier_breaks)
			VALUES ($1, $2, $3, $4, $5, 'EUR', $6, TRUE, $7::jsonb)
			ON CONFLICT (price_list_id, sku) DO UPDATE SET base_price = EXCLUDED.base_price, tier_breaks = EXCLUDED.tier_breaks`,
			listID, i, line.SKU, line.Desc, line.Price, line.UOM, line.Tiers)
		if err != nil {
			log.Fatalf("Failed to seed line %s: %v", line.SKU, err)
		}
	}
}

func seedConditions(ctx context.Context, conn *pgx.Conn, tenantID string) {
	log.Println("Seeding condition sets...")
	var setID string
	err := conn.QueryRow(ctx, `
		INSERT INTO condition_sets (tenant_id, customer_id, name, priority, conflict_strategy, active, valid_from)
		VALUES ($1, 'cust-demo', 'Volume program', 10, 'Stack', TRUE, now() - interval '1 day')
		ON CONFLICT (tenant_id, customer_id, name) DO UPDATE SET conflict_strategy = EXCLUDED.conflict_strategy
		RETURNING id`, tenantID).Scan(&setID)
	if err != nil {
		log.Fatalf("Failed to seed condition set: %v", err)
	}

	rules := []struct {
		Desc     string
		Scope    string
		Selector string
		Method   string
		Value    string
		MinQty   string
	}{
		{"Wheat volume discount", "Commodity", "WHEAT", "PCT", "-2.5", "50"},
		{"Loyalty rebate", "Global", "", "PCT", "-1.0", "0"},
		{"Handling markup", "SKU", "RAPE-001", "ABS", "0.40", "0"},
	}
	// Rules are replaced wholesale so repeated runs stay deterministic.
	if _, err := conn.Exec(ctx, `DELETE FROM condition_rules WHERE set_id = $1`, setID); err != nil {
		log.Fatalf("Failed to clear rules: %v", err)
	}
	for i, rule := range rules {
		_, err := conn.Exec(ctx, `
			INSERT INTO condition_rules (set_id, position, rule_type, scope, selector, method, value, min_qty, description)
			VALUES ($1, $2, 'discount', $3, $4, $5, $6, $7, $8)`,
			setID, i, rule.Scope, rule.Selector, rule.Method, rule.Value, rule.MinQty, rule.Desc)
		if err != nil {
			log.Fatalf("Failed to seed rule %q: %v", rule.Desc, err)
		}
	}
}

func seedFormulas(ctx context.Context, conn *pgx.Conn, tenantID string) {
	log.Println("Seeding dynamic formulas...")
	_, err := conn.Exec(ctx, `
		INSERT INTO dynamic_formulas (tenant_id, commodity, expression, inputs, round_decimals, active, valid_from)
		VALUES ($1, 'WHEAT', 'matif * 0.92 + basis', '["matif","basis"]'::jsonb, 2, TRUE, now() - interval '1 day')
		ON CONFLICT (tenant_id, sku, commodity) DO UPDATE SET expression = EXCLUDED.expression`,
		tenantID)
	if err != nil {
		log.Fatalf("Failed to seed formula: %v", err)
	}
}

func seedCharges(ctx context.Context, conn *pgx.Conn, tenantID string) {
	log.Println("Seeding charges and VAT...")
	charges := []struct {
		Code   string
		Name   string
		Kind   string
		Method string
		Value  string
		Scope  string
		Sel    string
	}{
		{"GRAIN-LEVY", "Grain levy", "Levy", "ABS", "0.20", "Commodity", "WHEAT"},
		{"LOGISTICS", "Logistics surcharge", "Surcharge", "PCT", "1.5", "Global", ""},
		{"VAT19", "VAT standard", "VAT", "PCT", "19", "Global", ""},
	}
	for _, c := range charges {
		_, err := conn.Exec(ctx, `
			INSERT INTO tax_charge_refs (tenant_id, code, name, kind, method, rate_or_amount, scope, scope_value, active, valid_from)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, now() - interval '1 day')
			ON CONFLICT (tenant_id, code) DO UPDATE SET rate_or_amount = EXCLUDED.rate_or_amount`,
			tenantID, c.Code, c.Name, c.Kind, c.Method, c.Value, c.Scope, c.Sel)
		if err != nil {
			log.Fatalf("Failed to seed charge %s: %v", c.Code, err)
		}
	}
}

func seedWebhooks(ctx context.Context, conn *pgx.Conn, tenantID string) {
	log.Println("Seeding webhook subscription...")
	_, err := conn.Exec(ctx, `
		INSERT INTO webhook_subscriptions (tenant_id, topic, url, secret, active)
		VALUES ($1, 'quote.calculated', 'http://localhost:9090/hooks/quotes', 'dev-secret', TRUE)
		ON CONFLICT (tenant_id, topic, url) DO NOTHING`, tenantID)
	if err != nil {
		log.Fatalf("Failed to seed webhook subscription: %v", err)
	}
}
