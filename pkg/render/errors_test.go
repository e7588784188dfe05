package render_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/render"
)

func TestMapErrors_UnknownFieldsBecomeFormLevel(t *testing.T) {
	desc := model.Descriptor{
		Name: "edit_profile",
		Elements: []model.Element{
			{Name: "firstname", Type: model.ElementText},
			{Name: "contact", Type: model.ElementFieldset, Elements: []model.Element{
				{Name: "email", Type: model.ElementEmail},
			}},
		},
	}

	mapped := render.MapErrors(desc, map[string][]string{
		"firstname":        {" This field is required ", "This field is required"},
		"email":            {"Please enter a valid email address"},
		"nickname":         {"Unknown field"},
		"non_field_errors": {"Profile locked"},
		"contact":          {"  "},
	}, "Session expired")

	wantFields := map[string][]string{
		"firstname": {"This field is required"},
		"email":     {"Please enter a valid email address"},
	}
	if diff := cmp.Diff(wantFields, mapped.Fields); diff != "" {
		t.Fatalf("field errors mismatch (-want +got):\n%s", diff)
	}
	wantForm := []string{"Session expired", "Unknown field", "Profile locked"}
	if diff := cmp.Diff(wantForm, mapped.Form); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
	if mapped.Empty() {
		t.Fatalf("mapping should not be empty")
	}
}

func TestMergeFormErrors(t *testing.T) {
	merged := render.MergeFormErrors([]string{" First ", "Second"}, "Second", "third", "  ")
	want := []string{"First", "Second", "third"}

	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merged form errors mismatch (-want +got):\n%s", diff)
	}
}
