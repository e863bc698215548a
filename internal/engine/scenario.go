package engine

import (
	"fmt"

	"github.com/talgya/supply-sim/internal/agents"
	"github.com/talgya/supply-sim/internal/bus"
	"github.com/talgya/supply-sim/internal/city"
	"github.com/talgya/supply-sim/internal/config"
	"github.com/talgya/supply-sim/internal/economy"
	"github.com/talgya/supply-sim/internal/metrics"
)

// Build assembles a stopped manager from a scenario: the city map, the bus,
// and the agents in a fixed registration order (factories, warehouses,
// trucks, stores, markets) so identical scenarios step identically.
func Build(cfg *config.Scenario) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cm := city.NewMap()
	for _, l := range cfg.Locations {
		err := cm.AddLocation(city.Location{
			ID: l.ID, Name: l.Name, X: l.X, Y: l.Y, Type: city.LocationType(l.Type),
		})
		if err != nil {
			return nil, fmt.Errorf("build city: %w", err)
		}
	}

	catalog := make(map[string]economy.Product, len(cfg.Products))
	for _, p := range cfg.Products {
		prod := economy.Product{ID: p.ID, Name: p.Name, UnitPrice: p.UnitPrice, StorageCost: p.StorageCost}
		if err := prod.Validate(); err != nil {
			return nil, fmt.Errorf("build catalog: %w", err)
		}
		catalog[prod.ID] = prod
	}

	b := bus.New(cfg.MailboxSize)
	mgr := NewManager(b, cm, metrics.NewTracker(cfg.Weights))

	for _, f := range cfg.Factories {
		agent := agents.NewFactory(agents.FactoryConfig{
			ID:             f.ID,
			LocationID:     f.Location,
			Capacity:       f.Capacity,
			ProductionTime: f.ProductionTime,
		}, b)
		if err := mgr.Register(agent); err != nil {
			return nil, err
		}
	}

	for _, w := range cfg.Warehouses {
		truckIDs := make([]string, len(w.Trucks))
		for i, t := range w.Trucks {
			truckIDs[i] = t.ID
		}
		agent := agents.NewWarehouse(agents.WarehouseConfig{
			ID:               w.ID,
			LocationID:       w.Location,
			FactoryID:        w.Factory,
			Inventory:        economy.Inventory(w.Inventory).Clone(),
			ReorderThreshold: w.ReorderThreshold,
			ReorderQuantity:  w.ReorderQuantity,
			TruckIDs:         truckIDs,
			OrderTTL:         w.OrderTTL,
		}, catalog, b)
		if err := mgr.Register(agent); err != nil {
			return nil, err
		}
		for _, t := range w.Trucks {
			truck := agents.NewTruck(agents.TruckConfig{
				ID:          t.ID,
				WarehouseID: w.ID,
				HomeID:      w.Location,
				Speed:       t.Speed,
				Capacity:    t.Capacity,
			}, cm, b)
			if err := mgr.Register(truck); err != nil {
				return nil, err
			}
		}
	}

	var storeIDs []string
	for _, st := range cfg.Stores {
		agent := agents.NewStore(agents.StoreConfig{
			ID:               st.ID,
			LocationID:       st.Location,
			WarehouseID:      st.Warehouse,
			Inventory:        economy.Inventory(st.Inventory).Clone(),
			ReorderThreshold: st.ReorderThreshold,
			ReorderQuantity:  st.ReorderQuantity,
			DemandRate:       st.DemandRate,
		}, catalog, b)
		if err := mgr.Register(agent); err != nil {
			return nil, err
		}
		storeIDs = append(storeIDs, st.ID)
	}

	for i, m := range cfg.Markets {
		stores := m.Stores
		if len(stores) == 0 {
			stores = append([]string(nil), storeIDs...)
		}
		agent := agents.NewMarket(agents.MarketConfig{
			ID:          m.ID,
			StoreIDs:    stores,
			BaseRate:    m.BaseRate,
			Volatility:  m.Volatility,
			EventChance: m.EventChance,
			Seed:        cfg.Seed + int64(i),
		}, b)
		if err := mgr.Register(agent); err != nil {
			return nil, err
		}
	}

	return mgr, nil
}
