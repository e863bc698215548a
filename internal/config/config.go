// Package config defines the scenario file format: the city, the products,
// and the agent roster a simulation is built from.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/supply-sim/internal/metrics"
)

// Product mirrors economy.Product in the scenario file.
type Product struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	UnitPrice   float64 `yaml:"unit_price"`
	StorageCost float64 `yaml:"storage_cost"`
}

// Location places a named point on the city map.
type Location struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	X    float64 `yaml:"x"`
	Y    float64 `yaml:"y"`
	Type string  `yaml:"type"`
}

// Factory configures one factory agent.
type Factory struct {
	ID             string `yaml:"id"`
	Location       string `yaml:"location"`
	Capacity       int    `yaml:"capacity"`
	ProductionTime uint64 `yaml:"production_time"`
}

// Truck configures one truck in a warehouse's fleet.
type Truck struct {
	ID       string  `yaml:"id"`
	Speed    float64 `yaml:"speed"`
	Capacity int     `yaml:"capacity"`
}

// Warehouse configures one warehouse agent and its trucks.
type Warehouse struct {
	ID               string         `yaml:"id"`
	Location         string         `yaml:"location"`
	Factory          string         `yaml:"factory"`
	Inventory        map[string]int `yaml:"inventory"`
	ReorderThreshold int            `yaml:"reorder_threshold"`
	ReorderQuantity  int            `yaml:"reorder_quantity"`
	OrderTTL         uint64         `yaml:"order_ttl"`
	Trucks           []Truck        `yaml:"trucks"`
}

// Store configures one store agent.
type Store struct {
	ID               string         `yaml:"id"`
	Location         string         `yaml:"location"`
	Warehouse        string         `yaml:"warehouse"`
	Inventory        map[string]int `yaml:"inventory"`
	ReorderThreshold int            `yaml:"reorder_threshold"`
	ReorderQuantity  int            `yaml:"reorder_quantity"`
	DemandRate       float64        `yaml:"demand_rate"`
}

// Market configures one market agent. An empty Stores list means all stores.
type Market struct {
	ID          string   `yaml:"id"`
	BaseRate    float64  `yaml:"base_rate"`
	Volatility  float64  `yaml:"volatility"`
	EventChance float64  `yaml:"event_chance"`
	Stores      []string `yaml:"stores"`
}

// Scenario is the complete simulation configuration.
type Scenario struct {
	Name         string          `yaml:"name"`
	Seed         int64           `yaml:"seed"`
	TickInterval time.Duration   `yaml:"tick_interval"`
	MailboxSize  int             `yaml:"mailbox_size"`
	Weights      metrics.Weights `yaml:"weights"`

	Products   []Product   `yaml:"products"`
	Locations  []Location  `yaml:"locations"`
	Factories  []Factory   `yaml:"factories"`
	Warehouses []Warehouse `yaml:"warehouses"`
	Stores     []Store     `yaml:"stores"`
	Markets    []Market    `yaml:"markets"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks cross-references: every agent must sit on a known
// location, and every warehouse/factory/store link must resolve.
func (s *Scenario) Validate() error {
	if len(s.Products) == 0 {
		return fmt.Errorf("no products defined")
	}
	locs := map[string]bool{}
	for _, l := range s.Locations {
		if locs[l.ID] {
			return fmt.Errorf("duplicate location %q", l.ID)
		}
		locs[l.ID] = true
	}
	factories := map[string]bool{}
	for _, f := range s.Factories {
		if !locs[f.Location] {
			return fmt.Errorf("factory %q references unknown location %q", f.ID, f.Location)
		}
		factories[f.ID] = true
	}
	warehouses := map[string]bool{}
	for _, w := range s.Warehouses {
		if !locs[w.Location] {
			return fmt.Errorf("warehouse %q references unknown location %q", w.ID, w.Location)
		}
		if !factories[w.Factory] {
			return fmt.Errorf("warehouse %q references unknown factory %q", w.ID, w.Factory)
		}
		warehouses[w.ID] = true
	}
	stores := map[string]bool{}
	for _, st := range s.Stores {
		if !locs[st.Location] {
			return fmt.Errorf("store %q references unknown location %q", st.ID, st.Location)
		}
		if !warehouses[st.Warehouse] {
			return fmt.Errorf("store %q references unknown warehouse %q", st.ID, st.Warehouse)
		}
		stores[st.ID] = true
	}
	for _, m := range s.Markets {
		for _, id := range m.Stores {
			if !stores[id] {
				return fmt.Errorf("market %q references unknown store %q", m.ID, id)
			}
		}
	}
	return nil
}

// Default returns the built-in scenario: two factories, two warehouses with
// three trucks each, five stores, and one market, laid out on a 100×100 city.
func Default() *Scenario {
	return &Scenario{
		Name:         "default",
		Seed:         42,
		TickInterval: time.Second,
		MailboxSize:  100,
		Weights:      metrics.DefaultWeights,
		Products: []Product{
			{ID: "widget", Name: "Widget", UnitPrice: 10, StorageCost: 0.05},
		},
		Locations: []Location{
			{ID: "loc-factory-1", Name: "North Plant", X: 10, Y: 90, Type: "factory"},
			{ID: "loc-factory-2", Name: "East Plant", X: 50, Y: 90, Type: "factory"},
			{ID: "loc-warehouse-1", Name: "West Depot", X: 20, Y: 50, Type: "warehouse"},
			{ID: "loc-warehouse-2", Name: "Central Depot", X: 40, Y: 50, Type: "warehouse"},
			{ID: "loc-store-1", Name: "Store One", X: 10, Y: 20, Type: "store"},
			{ID: "loc-store-2", Name: "Store Two", X: 30, Y: 20, Type: "store"},
			{ID: "loc-store-3", Name: "Store Three", X: 50, Y: 20, Type: "store"},
			{ID: "loc-store-4", Name: "Store Four", X: 15, Y: 10, Type: "store"},
			{ID: "loc-store-5", Name: "Store Five", X: 45, Y: 10, Type: "store"},
		},
		Factories: []Factory{
			{ID: "factory-1", Location: "loc-factory-1", Capacity: 2, ProductionTime: 3},
			{ID: "factory-2", Location: "loc-factory-2", Capacity: 2, ProductionTime: 3},
		},
		Warehouses: []Warehouse{
			{
				ID: "warehouse-1", Location: "loc-warehouse-1", Factory: "factory-1",
				Inventory: map[string]int{"widget": 200}, ReorderThreshold: 80, ReorderQuantity: 150,
				OrderTTL: 50,
				Trucks: []Truck{
					{ID: "truck-1a", Speed: 10, Capacity: 100},
					{ID: "truck-1b", Speed: 10, Capacity: 100},
					{ID: "truck-1c", Speed: 10, Capacity: 100},
				},
			},
			{
				ID: "warehouse-2", Location: "loc-warehouse-2", Factory: "factory-2",
				Inventory: map[string]int{"widget": 200}, ReorderThreshold: 80, ReorderQuantity: 150,
				OrderTTL: 50,
				Trucks: []Truck{
					{ID: "truck-2a", Speed: 10, Capacity: 100},
					{ID: "truck-2b", Speed: 10, Capacity: 100},
					{ID: "truck-2c", Speed: 10, Capacity: 100},
				},
			},
		},
		Stores: []Store{
			{ID: "store-1", Location: "loc-store-1", Warehouse: "warehouse-1", Inventory: map[string]int{"widget": 40}, ReorderThreshold: 15, ReorderQuantity: 50, DemandRate: 2},
			{ID: "store-2", Location: "loc-store-2", Warehouse: "warehouse-1", Inventory: map[string]int{"widget": 40}, ReorderThreshold: 15, ReorderQuantity: 50, DemandRate: 2},
			{ID: "store-3", Location: "loc-store-3", Warehouse: "warehouse-2", Inventory: map[string]int{"widget": 40}, ReorderThreshold: 15, ReorderQuantity: 50, DemandRate: 2},
			{ID: "store-4", Location: "loc-store-4", Warehouse: "warehouse-1", Inventory: map[string]int{"widget": 40}, ReorderThreshold: 15, ReorderQuantity: 50, DemandRate: 1.5},
			{ID: "store-5", Location: "loc-store-5", Warehouse: "warehouse-2", Inventory: map[string]int{"widget": 40}, ReorderThreshold: 15, ReorderQuantity: 50, DemandRate: 1.5},
		},
		Markets: []Market{
			{ID: "market-1", BaseRate: 2, Volatility: 0.3, EventChance: 0.02},
		},
	}
}
