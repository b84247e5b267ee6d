package service

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"strings"
	"testing"

	"gorm.io/datatypes"

	"ebay_dev_v1_202608/internal/api/dto"
	"ebay_dev_v1_202608/internal/model"
)

// ==================== 测试辅助 ====================

func newComposerForTest(t *testing.T) *ComposerService {
	t.Helper()
	store := newFakeObjectStore()
	store.files["taxonomy/categorytree.json"] = []byte(testCategoryTree)
	store.files["taxonomy/conditions/73432.json"] = []byte(`{
		"itemConditions": [
			{"conditionId": "1000", "conditionDescription": "New"},
			{"conditionId": "3000", "conditionDescription": "Used"}
		]
	}`)
	return NewComposerService(NewTaxonomyService(store, "taxonomy"), NewShippingService())
}

func testEnriched() *dto.EnrichedContent {
	return &dto.EnrichedContent{
		Package: dto.PackageEstimate{
			Weight:        500,
			BoxDimensions: dto.BoxDimensions{Length: 30, Width: 20, Height: 10},
		},
		Reselling: dto.ResellingInfo{
			ListingTitle:         "Vintage Baseball Sticker Set Japan",
			ConditionDescription: "Minor scratches on the surface.",
			PromotionalText:      "Rare vintage sticker set from Japan.",
			ItemSpecifics: map[string]interface{}{
				"Brand": "Calbee",
				"Sport": []interface{}{"Baseball"},
			},
		},
	}
}

func composerTestParams() *model.AppParams {
	return &model.AppParams{
		ID:     model.AppParamsID,
		UsdJpy: 150,
		DefaultCategorySrc: datatypes.JSONSlice[string]{
			"Sports Mem, Cards & Fan Shop", "Vintage Sports Memorabilia", "Stickers",
		},
		DefaultStoreCategorySrc: datatypes.JSONSlice[string]{"Collectibles"},
	}
}

// ==================== 单元测试 ====================

func TestComposerService_Compose(t *testing.T) {
	svc := newComposerForTest(t)

	item := eligibleItem()
	item.OrgImageUrls = datatypes.JSONSlice[string]{"https://img/1.jpg", "https://img/2.jpg"}

	draft, err := svc.Compose(context.Background(), item, composerTestParams(), testEnriched())
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	if draft.EbayCategory != "73432" {
		t.Errorf("category = %s, want 73432", draft.EbayCategory)
	}
	if draft.EbayCondition != "USED_EXCELLENT" {
		t.Errorf("condition = %s, want USED_EXCELLENT", draft.EbayCondition)
	}
	if draft.EbayTitle != "Vintage Baseball Sticker Set Japan" {
		t.Errorf("title = %s", draft.EbayTitle)
	}
	// 30×20×10 500g 5000円：小形包装物 max(1290, 1080+ceil(2.1*0.5)) = 1290
	if draft.ShippingYen != 1290 {
		t.Errorf("shippingYen = %v, want 1290", draft.ShippingYen)
	}
	if len(draft.EbayImageUrls) != 2 {
		t.Errorf("images = %d, want 2", len(draft.EbayImageUrls))
	}
	if !reflect.DeepEqual(draft.BoxSizeCm, []float64{30, 20, 10}) {
		t.Errorf("boxSizeCm = %v", draft.BoxSizeCm)
	}
}

func TestComposerService_Compose_TooLarge(t *testing.T) {
	svc := newComposerForTest(t)

	enriched := testEnriched()
	enriched.Package.BoxDimensions = dto.BoxDimensions{Length: 130, Width: 50, Height: 50}

	_, err := svc.Compose(context.Background(), eligibleItem(), composerTestParams(), enriched)
	if !errors.Is(err, ErrPackageTooLarge) {
		t.Errorf("error = %v, want ErrPackageTooLarge", err)
	}
}

func TestComposerService_Compose_CategoryNotFound(t *testing.T) {
	svc := newComposerForTest(t)

	params := composerTestParams()
	params.DefaultCategorySrc = datatypes.JSONSlice[string]{"No Such Category"}

	_, err := svc.Compose(context.Background(), eligibleItem(), params, testEnriched())
	if !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("error = %v, want ErrCategoryNotFound", err)
	}
}

func TestBuildDescription(t *testing.T) {
	html := BuildDescription("Great item.", "Like new.")

	for _, want := range []string{
		"<p>Great item.</p>",
		"<p>Like new.</p>",
		"Tracking numbers are provided",
		"Customs and import charges",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("description missing %q", want)
		}
	}
}

func TestFilterAspectParams(t *testing.T) {
	got := FilterAspectParams(map[string]interface{}{
		"Brand":    "Calbee",
		"Year":     float64(1975),
		"Sport":    []interface{}{"Baseball", "Sumo"},
		"Material": "",
		"League":   nil,
		"Team":     []interface{}{},
		"Partial":  []interface{}{"a", nil},
	})

	want := map[string][]string{
		"Brand":                         {"Calbee"},
		"Year":                          {"1975"},
		"Sport":                         {"Baseball", "Sumo"},
		"Country/Region of Manufacture": {"Japan"},
	}

	if len(got) != len(want) {
		gotKeys := make([]string, 0, len(got))
		for k := range got {
			gotKeys = append(gotKeys, k)
		}
		sort.Strings(gotKeys)
		t.Fatalf("keys = %v", gotKeys)
	}
	for k, v := range want {
		if !reflect.DeepEqual(got[k], v) {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestDisplayPrice(t *testing.T) {
	// 52000円成本，汇率150，利润15%：52000/(150×0.68) = 509.8039... → 509.80
	got := DisplayPrice(50000, 2000, 150, 0.15)
	if math.Abs(got-509.80) > 1e-9 {
		t.Errorf("price = %v, want 509.80", got)
	}

	// 汇率走高时美元价应下降
	higher := DisplayPrice(50000, 2000, 160, 0.15)
	if higher >= got {
		t.Errorf("price at 160 = %v, should be lower than %v", higher, got)
	}
}
