package store

import (
	"context"
	"fmt"
	"time"

	"carsa.local/complaints/internal/domain"
)

const day = 24 * time.Hour

// DemoCustomers returns the demo and simulation customers with dates relative
// to now. IDs are stable so reseeding replaces rather than duplicates.
func DemoCustomers(now time.Time) []domain.Customer {
	now = now.UTC()
	ago := func(days int) time.Time { return now.Add(-time.Duration(days) * day) }
	ahead := func(days int) time.Time { return now.Add(time.Duration(days) * day) }
	ptr := func(t time.Time) *time.Time { return &t }

	return []domain.Customer{
		{
			ID:    "cust-james-wilson",
			Name:  "James Wilson",
			Email: "james.wilson@email.com",
			Phone: "07700 900123",
			Orders: []domain.Order{{
				ID:                   "order-2024-00001",
				OrderNumber:          "ORD-2024-00001",
				VehicleReg:           "YN23 XYZ",
				VehicleMake:          "BMW",
				VehicleModel:         "3 Series",
				VehicleYear:          2022,
				PurchaseDate:         ago(21),
				PurchasePrice:        24995,
				DeliveryStatus:       domain.DeliveryDelivered,
				DeliveryDate:         ptr(ago(14)),
				DeliveryAddress:      "42 Oak Street, Manchester, M1 2AB",
				WarrantyType:         domain.WarrantyStandard90,
				WarrantyExpiry:       ahead(76),
				Accessories:          []string{"charging_cable", "floor_mats"},
				AccessoriesDelivered: false,
			}},
		},
		{
			ID:    "cust-sarah-chen",
			Name:  "Sarah Chen",
			Email: "sarah.chen@email.com",
			Phone: "07700 900456",
			Orders: []domain.Order{{
				ID:                   "order-2024-00002",
				OrderNumber:          "ORD-2024-00002",
				VehicleReg:           "WR24 ABC",
				VehicleMake:          "Mercedes-Benz",
				VehicleModel:         "A-Class",
				VehicleYear:          2023,
				PurchaseDate:         ago(7),
				PurchasePrice:        28500,
				DeliveryStatus:       domain.DeliveryInTransit,
				DeliveryDate:         ptr(ahead(3)),
				DeliveryAddress:      "15 Elm Road, Southampton, SO14 5GH",
				WarrantyType:         domain.WarrantyCarsaCover12,
				WarrantyExpiry:       ahead(83),
				Accessories:          []string{"cleaning_kit"},
				AccessoriesDelivered: false,
			}},
		},
		{
			ID:    "cust-michael-brown",
			Name:  "Michael Brown",
			Email: "michael.brown@email.com",
			Phone: "07700 900789",
			Orders: []domain.Order{{
				ID:                   "order-2024-00003",
				OrderNumber:          "ORD-2024-00003",
				VehicleReg:           "AB12 CDE",
				VehicleMake:          "Audi",
				VehicleModel:         "A4",
				VehicleYear:          2021,
				PurchaseDate:         ago(30),
				PurchasePrice:        22000,
				DeliveryStatus:       domain.DeliveryDelivered,
				DeliveryDate:         ptr(ago(25)),
				DeliveryAddress:      "8 Park Lane, Bolton, BL1 2RQ",
				WarrantyType:         domain.WarrantyStandard90,
				WarrantyExpiry:       ahead(60),
				Accessories:          []string{},
				AccessoriesDelivered: true,
			}},
		},
		{
			ID:    "cust-emma-thompson",
			Name:  "Emma Thompson",
			Email: "emma.thompson@email.com",
			Phone: "07700 900321",
			Orders: []domain.Order{{
				ID:                   "order-2024-00004",
				OrderNumber:          "ORD-2024-00004",
				VehicleReg:           "FG67 HIJ",
				VehicleMake:          "Volkswagen",
				VehicleModel:         "Golf",
				VehicleYear:          2022,
				PurchaseDate:         ago(45),
				PurchasePrice:        19500,
				DeliveryStatus:       domain.DeliveryDelivered,
				DeliveryDate:         ptr(ago(40)),
				DeliveryAddress:      "27 High Street, Durham, DH1 3AP",
				WarrantyType:         domain.WarrantyStandard90,
				WarrantyExpiry:       ahead(45),
				Accessories:          []string{"cleaning_kit", "floor_mats"},
				AccessoriesDelivered: false,
			}},
		},
		{
			ID:    "cust-test-standard",
			Name:  "Test Customer",
			Email: "test.customer@example.com",
			Phone: "07700 900000",
			Orders: []domain.Order{{
				ID:                   "order-test-00001",
				OrderNumber:          "ORD-TEST-00001",
				VehicleReg:           "TE57 AAA",
				VehicleMake:          "Ford",
				VehicleModel:         "Focus",
				VehicleYear:          2020,
				PurchaseDate:         ago(20),
				PurchasePrice:        14995,
				DeliveryStatus:       domain.DeliveryDelivered,
				DeliveryDate:         ptr(ago(15)),
				DeliveryAddress:      "1 Test Street, Leeds, LS1 1AA",
				WarrantyType:         domain.WarrantyStandard90,
				WarrantyExpiry:       ahead(70),
				Accessories:          []string{"floor_mats"},
				AccessoriesDelivered: false,
			}},
		},
		{
			ID:    "cust-test-issues",
			Name:  "Issues Customer",
			Email: "issues.customer@example.com",
			Phone: "07700 900001",
			Orders: []domain.Order{{
				ID:                   "order-test-00002",
				OrderNumber:          "ORD-TEST-00002",
				VehicleReg:           "TE57 BBB",
				VehicleMake:          "Vauxhall",
				VehicleModel:         "Corsa",
				VehicleYear:          2019,
				PurchaseDate:         ago(50),
				PurchasePrice:        9995,
				DeliveryStatus:       domain.DeliveryDelivered,
				DeliveryDate:         ptr(ago(45)),
				DeliveryAddress:      "2 Test Street, Leeds, LS1 1AB",
				WarrantyType:         domain.WarrantyStandard90,
				WarrantyExpiry:       ahead(40),
				Accessories:          []string{"charging_cable"},
				AccessoriesDelivered: false,
			}},
		},
	}
}

// Seed writes DemoCustomers into s.
func Seed(ctx context.Context, s Store, now time.Time) (int, error) {
	customers := DemoCustomers(now)
	for _, customer := range customers {
		if err := s.SaveCustomer(ctx, customer); err != nil {
			return 0, fmt.Errorf("seed %s: %w", customer.Email, err)
		}
	}
	return len(customers), nil
}
