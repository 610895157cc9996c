package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maildeskhq/maildesk/internal/crm"
	"github.com/maildeskhq/maildesk/internal/observability"
	"github.com/maildeskhq/maildesk/internal/store"
	"github.com/maildeskhq/maildesk/pkg/models"
)

// seedFile is the YAML shape of a demo dataset: inbox items plus the CRM
// records the lookup tools resolve them against.
type seedFile struct {
	Items []models.Item `yaml:"items"`
	CRM   struct {
		Customers []crm.Customer `yaml:"customers"`
		Orders    []crm.Order    `yaml:"orders"`
		Shipments []crm.Shipment `yaml:"shipments"`
		Tickets   []crm.Ticket   `yaml:"tickets"`
	} `yaml:"crm"`
}

// loadSeed populates the item store and, when it is the in-memory variant,
// the CRM directory from a seed file. SQL-backed directories are managed
// externally and only receive the inbox items.
func loadSeed(ctx context.Context, path string, itemStore store.Store, directory crm.Directory, logger *observability.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for i := range seed.Items {
		item := seed.Items[i]
		if item.ID == "" {
			return fmt.Errorf("seed item %d has no id", i)
		}
		if err := itemStore.Upsert(ctx, &item); err != nil {
			return fmt.Errorf("seed item %s: %w", item.ID, err)
		}
	}

	memory, ok := directory.(*crm.MemoryDirectory)
	if !ok {
		if len(seed.CRM.Customers)+len(seed.CRM.Orders)+len(seed.CRM.Shipments)+len(seed.CRM.Tickets) > 0 {
			logger.Warn(ctx, "seed file carries crm records but the crm driver is not memory, skipping them")
		}
		logger.Info(ctx, "seed data loaded", "items", len(seed.Items))
		return nil
	}

	for _, c := range seed.CRM.Customers {
		memory.AddCustomer(c)
	}
	for _, o := range seed.CRM.Orders {
		memory.AddOrder(o)
	}
	for _, s := range seed.CRM.Shipments {
		memory.AddShipment(s)
	}
	for _, t := range seed.CRM.Tickets {
		memory.AddTicket(t)
	}

	logger.Info(ctx, "seed data loaded",
		"items", len(seed.Items),
		"customers", len(seed.CRM.Customers),
		"orders", len(seed.CRM.Orders),
		"shipments", len(seed.CRM.Shipments),
		"tickets", len(seed.CRM.Tickets),
	)
	return nil
}
