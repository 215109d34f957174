package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var serviceCategories = []string{
	"পাসপোর্ট",
	"স্মার্ট কার্ড ও জাতীয় পরিচয়পত্র",
	"জন্ম নিবন্ধন",
	"ড্রাইভিং লাইসেন্স",
}

func TestRefineCategoryExactMatch(t *testing.T) {
	got := RefineCategory("পাসপোর্ট", serviceCategories, 0.6)
	assert.Equal(t, "পাসপোর্ট", got)
}

func TestRefineCategoryExactMatchIgnoresCaseAndSpace(t *testing.T) {
	categories := []string{"Passport", "Driving License"}
	got := RefineCategory("  passport ", categories, 0.6)
	assert.Equal(t, "Passport", got)
}

func TestRefineCategoryCloseMatch(t *testing.T) {
	// One character off from the vocabulary entry.
	got := RefineCategory("জন্ম নিবন্ধণ", serviceCategories, 0.6)
	assert.Equal(t, "জন্ম নিবন্ধন", got)
}

func TestRefineCategoryRejectsDistantCandidate(t *testing.T) {
	got := RefineCategory("আয়কর রিটার্ন", serviceCategories, 0.6)
	assert.Equal(t, "", got)
}

func TestRefineCategoryEmptyCandidate(t *testing.T) {
	assert.Equal(t, "", RefineCategory("", serviceCategories, 0.6))
	assert.Equal(t, "", RefineCategory("   ", serviceCategories, 0.6))
}

func TestRefineCategoryEmptyVocabulary(t *testing.T) {
	assert.Equal(t, "", RefineCategory("পাসপোর্ট", nil, 0.6))
}
