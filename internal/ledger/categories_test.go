package ledger

import (
	"errors"
	"testing"

	"finance-tracker/internal/domain"
)

func TestEnsureDefaultsIsIdempotent(t *testing.T) {
	s, _ := newService(t)

	first, err := s.EnsureDefaults(ctx, 1)
	if err != nil {
		t.Fatalf("EnsureDefaults: %v", err)
	}
	if len(first) != len(domain.DefaultCategories) {
		t.Fatalf("seeded %d categories, want %d", len(first), len(domain.DefaultCategories))
	}
	second, err := s.EnsureDefaults(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Errorf("second call grew the list to %d", len(second))
	}
	for _, c := range second {
		if !c.IsDefault {
			t.Errorf("%q is not marked default", c.Name)
		}
	}

	// "Other" exists for both kinds.
	others := 0
	for _, c := range second {
		if c.Name == "Other" {
			others++
		}
	}
	if others != 2 {
		t.Errorf("found %d Other categories, want 2", others)
	}
}

func TestCreateCategory(t *testing.T) {
	s, _ := newService(t)
	if _, err := s.EnsureDefaults(ctx, 1); err != nil {
		t.Fatal(err)
	}

	pets, err := s.CreateCategory(ctx, 1, NewCategory{Name: "  Pets ", Kind: domain.Expense, Icon: "🐶"})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if pets.Name != "Pets" || pets.IsDefault {
		t.Errorf("CreateCategory() = %+v", pets)
	}

	tests := []struct {
		name string
		in   NewCategory
	}{
		{"duplicate ignoring case", NewCategory{Name: "pets", Kind: domain.Expense}},
		{"duplicate of a default", NewCategory{Name: "FOOD", Kind: domain.Expense}},
		{"blank", NewCategory{Name: "  ", Kind: domain.Expense}},
		{"bad kind", NewCategory{Name: "Gifts", Kind: "other"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateCategory(ctx, 1, tt.in); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("CreateCategory() = %v, want ErrInvalidInput", err)
			}
		})
	}

	// same name, other kind is fine
	if _, err := s.CreateCategory(ctx, 1, NewCategory{Name: "Pets", Kind: domain.Income}); err != nil {
		t.Errorf("CreateCategory(income Pets) = %v", err)
	}

	list, err := s.ListCategories(ctx, 1, domain.Expense)
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Name != "Pets" {
		t.Errorf("custom categories should come first, got %q", list[0].Name)
	}
	for _, c := range list {
		if c.Kind != domain.Expense {
			t.Errorf("kind filter leaked %+v", c)
		}
	}
}

func TestCreateCategoryLimit(t *testing.T) {
	s, _ := newService(t)
	s.cfg.MaxCategoriesPerUser = 2
	category(t, s, 1, "A1", domain.Expense)
	category(t, s, 1, "A2", domain.Expense)
	if _, err := s.CreateCategory(ctx, 1, NewCategory{Name: "A3", Kind: domain.Expense}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("CreateCategory over the limit = %v, want ErrInvalidInput", err)
	}
}

func TestRenameCategory(t *testing.T) {
	s, _ := newService(t)
	defaults, err := s.EnsureDefaults(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	pets := category(t, s, 1, "Pets", domain.Expense)

	renamed, err := s.RenameCategory(ctx, 1, pets.ID, "Animals")
	if err != nil {
		t.Fatalf("RenameCategory: %v", err)
	}
	if renamed.Name != "Animals" || renamed.ID != pets.ID {
		t.Errorf("RenameCategory() = %+v", renamed)
	}
	if _, err := s.RenameCategory(ctx, 1, defaults[0].ID, "Mine"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("renaming a default = %v, want ErrInvalidInput", err)
	}
	if _, err := s.RenameCategory(ctx, 2, pets.ID, "Stolen"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("renaming another user's category = %v, want ErrNotFound", err)
	}
}

func TestDeleteCategory(t *testing.T) {
	s, _ := newService(t)
	pets := category(t, s, 1, "Pets", domain.Expense)
	vet := category(t, s, 1, "Vet", domain.Expense)
	salary := category(t, s, 1, "Salary", domain.Income)
	empty := category(t, s, 1, "Empty", domain.Expense)

	for range 3 {
		if _, err := s.Record(ctx, 1, expense(pets.ID, "12.30", day(2025, 3, 1))); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.DeleteCategory(ctx, 1, empty.ID, 0); err != nil {
		t.Errorf("deleting an unused category = %v", err)
	}
	if err := s.DeleteCategory(ctx, 1, pets.ID, 0); !errors.Is(err, domain.ErrCategoryInUse) {
		t.Errorf("DeleteCategory without fallback = %v, want ErrCategoryInUse", err)
	}
	if err := s.DeleteCategory(ctx, 1, pets.ID, salary.ID); !errors.Is(err, domain.ErrCategoryMismatch) {
		t.Errorf("DeleteCategory with income fallback = %v, want ErrCategoryMismatch", err)
	}
	if err := s.DeleteCategory(ctx, 1, pets.ID, vet.ID); err != nil {
		t.Fatalf("DeleteCategory with fallback: %v", err)
	}

	moved, err := s.Collect(ctx, 1, Filter{CategoryID: vet.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(moved) != 3 {
		t.Errorf("%d transactions moved to the fallback, want 3", len(moved))
	}
	if _, err := s.Collect(ctx, 1, Filter{CategoryID: pets.ID}); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListCategories(ctx, 1, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range list {
		if c.ID == pets.ID || c.ID == empty.ID {
			t.Errorf("deleted category %q still listed", c.Name)
		}
	}
}

func TestDefaultCategoryCannotBeDeleted(t *testing.T) {
	s, _ := newService(t)
	defaults, err := s.EnsureDefaults(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCategory(ctx, 1, defaults[0].ID, 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("DeleteCategory(default) = %v, want ErrInvalidInput", err)
	}
}
