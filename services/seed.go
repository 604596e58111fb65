package services

import (
	"context"
	"fmt"

	"unieats/models"

	"github.com/shopspring/decimal"
)

const demoStock = 20

var demoRestaurants = []models.Restaurant{
	{ID: "00000000-0000-0000-0000-000000000001", Name: "Campus Café", Description: "Fresh, healthy options for breakfast and lunch.", Cuisine: "Various"},
	{ID: "00000000-0000-0000-0000-000000000002", Name: "The Grill House", Description: "Burgers, sandwiches, and more hot off the grill.", Cuisine: "Various"},
	{ID: "00000000-0000-0000-0000-000000000003", Name: "Noodle Bar", Description: "Asian-inspired noodle dishes and stir-fries.", Cuisine: "Various"},
}

var demoMenu = []models.MenuItem{
	{ID: "00000000-0000-0000-0000-000000000101", RestaurantID: "00000000-0000-0000-0000-000000000001", Name: "Avocado Toast", Description: "Sourdough toast with avocado and cherry tomatoes.", Price: decimal.RequireFromString("8.99"), Category: "Breakfast"},
	{ID: "00000000-0000-0000-0000-000000000102", RestaurantID: "00000000-0000-0000-0000-000000000001", Name: "Granola Bowl", Description: "House-made granola with Greek yogurt.", Price: decimal.RequireFromString("7.50"), Category: "Breakfast"},
	{ID: "00000000-0000-0000-0000-000000000103", RestaurantID: "00000000-0000-0000-0000-000000000001", Name: "Veggie Wrap", Description: "Spinach tortilla with hummus and roasted vegetables.", Price: decimal.RequireFromString("9.99"), Category: "Lunch"},
	{ID: "00000000-0000-0000-0000-000000000201", RestaurantID: "00000000-0000-0000-0000-000000000002", Name: "Classic Cheeseburger", Description: "Beef patty with cheddar, lettuce and tomato.", Price: decimal.RequireFromString("12.99"), Category: "Burgers"},
	{ID: "00000000-0000-0000-0000-000000000202", RestaurantID: "00000000-0000-0000-0000-000000000002", Name: "Veggie Burger", Description: "Plant-based patty with avocado and sprouts.", Price: decimal.RequireFromString("11.99"), Category: "Burgers"},
	{ID: "00000000-0000-0000-0000-000000000301", RestaurantID: "00000000-0000-0000-0000-000000000003", Name: "Pad Thai", Description: "Rice noodles with tofu, peanuts and lime.", Price: decimal.RequireFromString("10.50"), Category: "Noodles"},
}

// SeedCatalog inserts the demo restaurants and menu. Rows that already exist
// are left alone, so it can run on every start.
func (r *Repo) SeedCatalog(ctx context.Context) (inserted int, err error) {
	for _, rest := range demoRestaurants {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO restaurants (id, name, description, image_url, cuisine_type)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			rest.ID, rest.Name, rest.Description, models.DefaultImage, rest.Cuisine,
		)
		if err != nil {
			return inserted, fmt.Errorf("seed restaurant %s: %w", rest.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	for _, item := range demoMenu {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO menu_items (id, restaurant_id, name, description, price, image_url, category, available, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
			ON CONFLICT (id) DO NOTHING`,
			item.ID, item.RestaurantID, item.Name, item.Description, item.Price, models.DefaultImage, item.Category, demoStock,
		)
		if err != nil {
			return inserted, fmt.Errorf("seed menu item %s: %w", item.Name, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
