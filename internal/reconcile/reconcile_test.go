package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"storefront/internal/model"
)

func TestPlanAdd_MergesExistingAndPreservesOthers(t *testing.T) {
	current := []CurrentLine{
		{LineID: "line-a", VariantID: "A", Quantity: 2},
		{LineID: "line-b", VariantID: "B", Quantity: 1},
	}
	requested := []model.LineInput{
		{VariantID: "A", Quantity: 3},
		{VariantID: "C", Quantity: 1},
	}

	plan := PlanAdd(current, requested, Options{PreserveUntouched: true})

	wantUpdates := []model.LineUpdate{
		{LineID: "line-b", Quantity: 1},
		{LineID: "line-a", Quantity: 5},
	}
	wantAdds := []model.LineInput{{VariantID: "C", Quantity: 1}}

	if diff := cmp.Diff(wantUpdates, plan.Updates); diff != "" {
		t.Errorf("Updates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantAdds, plan.Adds); diff != "" {
		t.Errorf("Adds mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanAdd_WithoutPreserve(t *testing.T) {
	current := []CurrentLine{
		{LineID: "line-a", VariantID: "A", Quantity: 2},
		{LineID: "line-b", VariantID: "B", Quantity: 1},
	}
	requested := []model.LineInput{{VariantID: "A", Quantity: 1}}

	plan := PlanAdd(current, requested, Options{})

	want := []model.LineUpdate{{LineID: "line-a", Quantity: 3}}
	if diff := cmp.Diff(want, plan.Updates); diff != "" {
		t.Errorf("Updates mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Adds) != 0 {
		t.Errorf("Adds = %d, want 0", len(plan.Adds))
	}
}

func TestPlanAdd_EmptyCart(t *testing.T) {
	requested := []model.LineInput{
		{VariantID: "A", Quantity: 2},
		{VariantID: "B", Quantity: 1},
	}

	plan := PlanAdd(nil, requested, Options{PreserveUntouched: true})

	if len(plan.Updates) != 0 {
		t.Errorf("Updates = %d, want 0", len(plan.Updates))
	}
	if diff := cmp.Diff(requested, plan.Adds); diff != "" {
		t.Errorf("Adds mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanAdd_OnlyNewVariantsStillRestatesCart(t *testing.T) {
	current := []CurrentLine{{LineID: "line-a", VariantID: "A", Quantity: 4}}
	requested := []model.LineInput{{VariantID: "Z", Quantity: 1}}

	plan := PlanAdd(current, requested, Options{PreserveUntouched: true})

	want := []model.LineUpdate{{LineID: "line-a", Quantity: 4}}
	if diff := cmp.Diff(want, plan.Updates); diff != "" {
		t.Errorf("Updates mismatch (-want +got):\n%s", diff)
	}
	if len(plan.Adds) != 1 || plan.Adds[0].VariantID != "Z" {
		t.Errorf("Adds = %+v, want [Z]", plan.Adds)
	}
}

func TestPlanAdd_DuplicateRequestVariants(t *testing.T) {
	current := []CurrentLine{{LineID: "line-a", VariantID: "A", Quantity: 1}}
	requested := []model.LineInput{
		{VariantID: "A", Quantity: 1},
		{VariantID: "N", Quantity: 2},
		{VariantID: "A", Quantity: 2},
		{VariantID: "N", Quantity: 1},
	}

	plan := PlanAdd(current, requested, Options{PreserveUntouched: true})

	wantUpdates := []model.LineUpdate{{LineID: "line-a", Quantity: 4}}
	wantAdds := []model.LineInput{{VariantID: "N", Quantity: 3}}
	if diff := cmp.Diff(wantUpdates, plan.Updates); diff != "" {
		t.Errorf("Updates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantAdds, plan.Adds); diff != "" {
		t.Errorf("Adds mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanClear(t *testing.T) {
	current := []CurrentLine{
		{LineID: "l1", VariantID: "A", Quantity: 2},
		{LineID: "l2", VariantID: "B", Quantity: 1},
		{LineID: "l3", VariantID: "C", Quantity: 7},
	}

	got := PlanClear(current)

	want := []model.LineUpdate{
		{LineID: "l1", Quantity: 0},
		{LineID: "l2", Quantity: 0},
		{LineID: "l3", Quantity: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PlanClear mismatch (-want +got):\n%s", diff)
	}
}

func TestFromCart(t *testing.T) {
	if got := FromCart(nil); got != nil {
		t.Errorf("FromCart(nil) = %v, want nil", got)
	}

	c := &model.Cart{Lines: []model.CartLine{
		{ID: "l1", VariantID: "A", Quantity: 2},
	}}
	want := []CurrentLine{{LineID: "l1", VariantID: "A", Quantity: 2}}
	if diff := cmp.Diff(want, FromCart(c)); diff != "" {
		t.Errorf("FromCart mismatch (-want +got):\n%s", diff)
	}
}
