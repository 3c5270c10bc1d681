package fakeapi

// DemoPassword is the password of every demo account.
const DemoPassword = "farmcart"

// DemoUsers are the accounts created by SeedDemo, one per role.
var DemoUsers = []User{
	{Name: "Ada Greenfield", Phone: "0100000001", Email: "ada@farmcart.test", Role: "farmer", Password: DemoPassword},
	{Name: "Ben Marsh", Phone: "0100000002", Email: "ben@farmcart.test", Role: "customer", Password: DemoPassword},
	{Name: "Cleo Rider", Phone: "0100000003", Email: "cleo@farmcart.test", Role: "delivery", Password: DemoPassword},
}

// SeedDemo fills s with demo accounts and a small catalogue.
func SeedDemo(s *Server) {
	for _, u := range DemoUsers {
		s.AddUser(u)
	}
	s.Seed("addresses",
		map[string]any{"label": "Home", "line1": "12 Orchard Lane", "city": "Springfield", "isPrimary": true},
		map[string]any{"label": "Work", "line1": "4 Market Street", "city": "Springfield", "isPrimary": false},
	)
	s.Seed("farms",
		map[string]any{"name": "Greenfield Acres", "location": "North Valley", "farmerId": 1},
	)
	s.Seed("vegetables",
		map[string]any{"name": "Carrot", "price": 1.2, "unit": "kg", "stock": 120, "farmId": 1},
		map[string]any{"name": "Tomato", "price": 2.5, "unit": "kg", "stock": 80, "farmId": 1},
		map[string]any{"name": "Spinach", "price": 3.0, "unit": "bunch", "stock": 40, "farmId": 1},
	)
	s.Seed("orders",
		map[string]any{"customerId": 2, "status": "pending", "total": 7.4, "items": []any{
			map[string]any{"vegetableId": 1, "quantity": 2},
			map[string]any{"vegetableId": 2, "quantity": 2},
		}},
		map[string]any{"customerId": 2, "status": "delivered", "total": 3.0, "items": []any{
			map[string]any{"vegetableId": 3, "quantity": 1},
		}},
	)
	s.Seed("deliveries",
		map[string]any{"orderId": 1, "agentId": 3, "status": "assigned"},
	)
}
