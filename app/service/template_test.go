package service

import (
	"context"
	"testing"

	"github.com/vibast-solutions/ms-go-donations/app/entity"
)

func TestTemplateServiceCreatesDefaultOnce(t *testing.T) {
	repo := &memTemplateRepo{}
	svc := NewTemplateService(repo)

	for i := 0; i < 3; i++ {
		tpl, err := svc.Active(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tpl.HeaderText != entity.DefaultHeaderText {
			t.Fatalf("expected default header, got %s", tpl.HeaderText)
		}
	}
	if repo.creates != 1 {
		t.Fatalf("expected default created once, got %d", repo.creates)
	}
}

func TestTemplateServiceUpdate(t *testing.T) {
	repo := &memTemplateRepo{}
	svc := NewTemplateService(repo)
	name := "Gau Seva Trust"

	tpl, err := svc.Update(context.Background(), entity.TemplateUpdate{NGOName: &name})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tpl.NGOName == nil || *tpl.NGOName != name {
		t.Fatalf("expected ngo name updated, got %v", tpl.NGOName)
	}
	if repo.updates != 1 {
		t.Fatalf("expected one update, got %d", repo.updates)
	}

	if _, err := svc.Update(context.Background(), entity.TemplateUpdate{NGOName: &name}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.updates != 1 {
		t.Fatal("expected unchanged update to skip write")
	}
}
