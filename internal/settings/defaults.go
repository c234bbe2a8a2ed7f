package settings

import "github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"

// DefaultCategories is the category set used until an operator saves their own.
func DefaultCategories() []services.CategoryMeta {
	return []services.CategoryMeta{
		{
			Slug:   "necessary",
			Locked: true,
			Labels: map[string]string{"en": "Strictly necessary", "it": "Strettamente necessari"},
			Descriptions: map[string]string{
				"en": "Required for the site to work. Always active.",
				"it": "Indispensabili per il funzionamento del sito. Sempre attivi.",
			},
		},
		{
			Slug:   "preferences",
			Labels: map[string]string{"en": "Preferences", "it": "Preferenze"},
			Descriptions: map[string]string{
				"en": "Remember choices such as language or region.",
				"it": "Ricordano scelte come lingua o area geografica.",
			},
		},
		{
			Slug:   "statistics",
			Labels: map[string]string{"en": "Statistics", "it": "Statistiche"},
			Descriptions: map[string]string{
				"en": "Help us understand how visitors use the site.",
				"it": "Ci aiutano a capire come i visitatori usano il sito.",
			},
		},
		{
			Slug:   "marketing",
			Labels: map[string]string{"en": "Marketing", "it": "Marketing"},
			Descriptions: map[string]string{
				"en": "Used to show relevant ads and measure campaigns.",
				"it": "Usati per mostrare annunci pertinenti e misurare le campagne.",
			},
		},
	}
}
