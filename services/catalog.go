package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unieats/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type restaurantRow struct {
	ID          string
	Name        string
	Description *string
	ImageURL    *string
	CuisineType *string
}

func (r restaurantRow) toModel() models.Restaurant {
	return models.Restaurant{
		ID:          r.ID,
		Name:        r.Name,
		Description: orDefault(r.Description, ""),
		Image:       orDefault(r.ImageURL, models.DefaultImage),
		Cuisine:     orDefault(r.CuisineType, ""),
		WaitTime:    models.DefaultWaitTime,
		Rating:      models.DefaultRating,
	}
}

type menuItemRow struct {
	ID           string
	RestaurantID string
	Name         string
	Description  *string
	Price        decimal.Decimal
	ImageURL     *string
	Category     *string
	Available    *bool
	Quantity     *int
}

func (r menuItemRow) toModel() models.MenuItem {
	item := models.MenuItem{
		ID:           r.ID,
		RestaurantID: r.RestaurantID,
		Name:         r.Name,
		Description:  orDefault(r.Description, ""),
		Price:        r.Price,
		Image:        orDefault(r.ImageURL, models.DefaultImage),
		Category:     orDefault(r.Category, models.DefaultCategory),
		Available:    r.Available == nil || *r.Available,
	}
	if r.Quantity != nil {
		item.Stock = *r.Quantity
	}
	return item
}

// orDefault also treats the empty string as missing.
func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

const restaurantColumns = `id::text, name, description, image_url, cuisine_type`

const menuItemColumns = `id::text, restaurant_id::text, name, description, price, image_url, category, available, quantity`

func scanRestaurant(row pgx.Row) (models.Restaurant, error) {
	var r restaurantRow
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.ImageURL, &r.CuisineType); err != nil {
		return models.Restaurant{}, err
	}
	return r.toModel(), nil
}

func scanMenuItem(row pgx.Row) (models.MenuItem, error) {
	var r menuItemRow
	if err := row.Scan(&r.ID, &r.RestaurantID, &r.Name, &r.Description, &r.Price, &r.ImageURL, &r.Category, &r.Available, &r.Quantity); err != nil {
		return models.MenuItem{}, err
	}
	return r.toModel(), nil
}

// GetRestaurants returns every restaurant in one fetch.
func (r *Repo) GetRestaurants(ctx context.Context) ([]models.Restaurant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+restaurantColumns+` FROM restaurants ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("fetch restaurants: %w", err)
	}
	defer rows.Close()

	var out []models.Restaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		out = append(out, rest)
	}
	return out, rows.Err()
}

func (r *Repo) GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrRestaurantNotFound
	}
	rest, err := scanRestaurant(r.pool.QueryRow(ctx, `SELECT `+restaurantColumns+` FROM restaurants WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, err
	}
	return &rest, nil
}

// GetMenuItems returns the menu of restaurantID, or every item when it is
// empty.
func (r *Repo) GetMenuItems(ctx context.Context, restaurantID string) ([]models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items`
	var args []any
	if restaurantID != "" {
		id, ok := parseID(restaurantID)
		if !ok {
			return nil, nil
		}
		query += ` WHERE restaurant_id = $1`
		args = append(args, id)
	}
	query += ` ORDER BY category, name, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch menu items: %w", err)
	}
	defer rows.Close()

	var out []models.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repo) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrMenuItemNotFound
	}
	item, err := scanMenuItem(r.pool.QueryRow(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *Repo) AddRestaurant(ctx context.Context, rest models.Restaurant) (*models.Restaurant, error) {
	if strings.TrimSpace(rest.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	created, err := scanRestaurant(r.pool.QueryRow(ctx, `
		INSERT INTO restaurants (name, description, image_url, cuisine_type)
		VALUES ($1, $2, $3, $4)
		RETURNING `+restaurantColumns,
		rest.Name, rest.Description, rest.Image, rest.Cuisine,
	))
	if err != nil {
		return nil, fmt.Errorf("add restaurant: %w", err)
	}
	return &created, nil
}

func (r *Repo) AddMenuItem(ctx context.Context, item models.MenuItem) (*models.MenuItem, error) {
	if strings.TrimSpace(item.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	restaurantID, ok := parseID(item.RestaurantID)
	if !ok {
		return nil, ErrRestaurantNotFound
	}
	if item.Price.IsNegative() {
		return nil, fmt.Errorf("price must be >= 0")
	}
	if item.Stock < 0 {
		return nil, fmt.Errorf("stock must be >= 0")
	}
	created, err := scanMenuItem(r.pool.QueryRow(ctx, `
		INSERT INTO menu_items (restaurant_id, name, description, price, image_url, category, available, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+menuItemColumns,
		restaurantID, item.Name, item.Description, item.Price, item.Image, item.Category, item.Available, item.Stock,
	))
	if err != nil {
		return nil, fmt.Errorf("add menu item: %w", err)
	}
	return &created, nil
}

// UpdateMenuItem applies the non-nil fields of upd.
func (r *Repo) UpdateMenuItem(ctx context.Context, id string, upd models.MenuItemUpdate) (*models.MenuItem, error) {
	id, ok := parseID(id)
	if !ok {
		return nil, ErrMenuItemNotFound
	}
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if upd.Name != nil && *upd.Name != "" {
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Price != nil {
		if upd.Price.IsNegative() {
			return nil, fmt.Errorf("price must be >= 0")
		}
		add("price", *upd.Price)
	}
	if upd.Image != nil && *upd.Image != "" {
		add("image_url", *upd.Image)
	}
	if upd.Category != nil && *upd.Category != "" {
		add("category", *upd.Category)
	}
	if upd.Available != nil {
		add("available", *upd.Available)
	}
	if upd.Stock != nil {
		if *upd.Stock < 0 {
			return nil, fmt.Errorf("stock must be >= 0")
		}
		add("quantity", *upd.Stock)
	}
	if len(sets) == 0 {
		return r.GetMenuItem(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE menu_items SET %s WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), menuItemColumns)
	item, err := scanMenuItem(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("update menu item: %w", err)
	}
	return &item, nil
}

// DeleteMenuItem removes an item from the menu. Items that were ordered stay
// referenced by their order lines and give ErrMenuItemInUse.
func (r *Repo) DeleteMenuItem(ctx context.Context, id string) error {
	id, ok := parseID(id)
	if !ok {
		return ErrMenuItemNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrMenuItemInUse
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

const foreignKeyViolation = "23503"
