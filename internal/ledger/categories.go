package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"
	val "finance-tracker/internal/validator"
)

type NewCategory struct {
	Name string      `validate:"required,notblank,max=100"`
	Kind domain.Kind `validate:"required,kind"`
	Icon string      `validate:"max=10"`
}

func (s *Service) CreateCategory(ctx context.Context, user domain.UserID, in NewCategory) (domain.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := val.Check(in); err != nil {
		return domain.Category{}, err
	}

	var created domain.Category
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		existing, err := tx.ListCategories(ctx, "")
		if err != nil {
			return err
		}
		custom := 0
		for _, c := range existing {
			if c.Kind == in.Kind && strings.EqualFold(c.Name, in.Name) {
				return fmt.Errorf("%w: category %q already exists", domain.ErrInvalidInput, in.Name)
			}
			if !c.IsDefault {
				custom++
			}
		}
		if s.cfg.MaxCategoriesPerUser > 0 && custom >= s.cfg.MaxCategoriesPerUser {
			return fmt.Errorf("%w: limit of %d categories reached", domain.ErrInvalidInput, s.cfg.MaxCategoriesPerUser)
		}
		created, err = tx.UpsertCategory(ctx, domain.Category{Name: in.Name, Kind: in.Kind, Icon: in.Icon})
		return err
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("create category: %w", err)
	}
	slog.Info("category created", "user_id", user, "id", created.ID, "name", created.Name)
	return created, nil
}

// EnsureDefaults seeds the default categories the user does not have yet.
func (s *Service) EnsureDefaults(ctx context.Context, user domain.UserID) ([]domain.Category, error) {
	var all []domain.Category
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		existing, err := tx.ListCategories(ctx, "")
		if err != nil {
			return err
		}
		have := map[string]bool{}
		for _, c := range existing {
			have[string(c.Kind)+"/"+strings.ToLower(c.Name)] = true
		}
		for _, d := range domain.DefaultCategories {
			if have[string(d.Kind)+"/"+strings.ToLower(d.Name)] {
				continue
			}
			if _, err := tx.UpsertCategory(ctx, domain.Category{Name: d.Name, Kind: d.Kind, Icon: d.Icon, IsDefault: true}); err != nil {
				return err
			}
		}
		all, err = tx.ListCategories(ctx, "")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure default categories: %w", err)
	}
	return all, nil
}

// ListCategories returns custom categories first, then defaults, each by name.
// An empty kind lists both kinds.
func (s *Service) ListCategories(ctx context.Context, user domain.UserID, kind domain.Kind) ([]domain.Category, error) {
	var out []domain.Category
	err := s.store.View(ctx, user, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListCategories(ctx, kind)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (s *Service) RenameCategory(ctx context.Context, user domain.UserID, id int64, name string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	var renamed domain.Category
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if c.IsDefault {
			return fmt.Errorf("%w: default categories cannot be renamed", domain.ErrInvalidInput)
		}
		if err := val.Check(NewCategory{Name: name, Kind: c.Kind, Icon: c.Icon}); err != nil {
			return err
		}
		others, err := tx.ListCategories(ctx, c.Kind)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID != id && strings.EqualFold(o.Name, name) {
				return fmt.Errorf("%w: category %q already exists", domain.ErrInvalidInput, name)
			}
		}
		c.Name = name
		renamed, err = tx.UpsertCategory(ctx, c)
		return err
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("rename category %d: %w", id, err)
	}
	s.invalidate(user)
	return renamed, nil
}

// DeleteCategory removes a custom category. When transactions still use it
// the call fails with ErrCategoryInUse, unless fallback names another category
// of the same kind, in which case they are moved there first.
func (s *Service) DeleteCategory(ctx context.Context, user domain.UserID, id, fallback int64) error {
	moved := 0
	err := s.store.Update(ctx, user, func(tx storage.Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if c.IsDefault {
			return fmt.Errorf("%w: default categories cannot be deleted", domain.ErrInvalidInput)
		}
		n, err := tx.CountTransactions(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			if fallback == 0 {
				return fmt.Errorf("%w: %q has %d transactions", domain.ErrCategoryInUse, c.Name, n)
			}
			if fallback == id {
				return fmt.Errorf("%w: fallback must differ from the deleted category", domain.ErrInvalidInput)
			}
			if err := checkCategory(ctx, tx, fallback, c.Kind); err != nil {
				return err
			}
			if moved, err = tx.ReassignTransactions(ctx, id, fallback); err != nil {
				return err
			}
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	if moved > 0 {
		s.invalidate(user)
	}
	slog.Info("category deleted", "user_id", user, "id", id, "reassigned", moved)
	return nil
}
