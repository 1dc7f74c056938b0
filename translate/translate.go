// Package translate maps source-portal vocabulary (Turkish field labels,
// enumerated values, formatted price and area strings) into the canonical
// schema defined in models. Every function is pure and idempotent: feeding
// an already-canonical key or value back in is a no-op, because dictionary
// lookups simply miss.
package translate

import (
	"strings"

	"emlaksync/models"
)

// fieldMap translates portal spec-table labels to canonical field names.
// It carries both portals' label sets; labels unique to one portal don't
// collide with the other's.
var fieldMap = map[string]string{
	// hepsiemlak labels
	"İlan no":          models.FieldListingNo,
	"İlan No":          models.FieldListingNo,
	"İlan tarihi":      models.FieldListedAt,
	"İlan Tarihi":      models.FieldListedAt,
	"İlan Durumu":      models.FieldPropertyKind,
	"Konut Tipi":       models.FieldHousingType,
	"Oda Sayısı":       models.FieldRooms,
	"Banyo Sayısı":     models.FieldBathrooms,
	"Bulunduğu Kat":    models.FieldFloor,
	"Kat Sayısı":       models.FieldTotalFloors,
	"Bina Yaşı":        models.FieldBuildingAge,
	"Isınma Tipi":      models.FieldHeating,
	"Isıtma":           models.FieldHeating,
	"Yakıt Tipi":       models.FieldFuelType,
	"Eşya Durumu":      models.FieldFurnished,
	"Kullanım Durumu":  models.FieldUsageStatus,
	"Site İçerisinde":  models.FieldInComplex,
	"Aidat":            models.FieldDues,
	"Tapu Durumu":      models.FieldDeedStatus,
	"Yetkili Ofis":     models.FieldListedBy,
	"Kimden":           models.FieldListedBy,
	"Takas":            models.FieldSwap,

	// emlakjet labels
	"İlan Numarası":          models.FieldListingNo,
	"İlan Oluşturma Tarihi":  models.FieldListedAt,
	"Kategorisi":             models.FieldPropertyKind,
	"Tipi":                   models.FieldPropertyKind,
	"Türü":                   models.FieldHousingType,
	"Brüt Metrekare":         models.FieldGrossM2,
	"Net Metrekare":          models.FieldNetM2,
	"Binanın Yaşı":           models.FieldBuildingAge,
	"Binanın Kat Sayısı":     models.FieldTotalFloors,
	"Isıtma Tipi":            models.FieldHeating,
	"Krediye Uygunluk":       models.FieldCreditEligible,
}

// valueMap translates enumerated Turkish values. No fuzzy matching: a value
// either hits the dictionary exactly (after trimming) or passes through.
var valueMap = map[string]string{
	"Satılık":               "sale",
	"Kiralık":               "rent",
	"Daire":                 "apartment",
	"Villa":                 "villa",
	"Müstakil Ev":           "detached house",
	"Residence":             "residence",
	"Dubleks":               "duplex",
	"Tripleks":              "triplex",
	"Stüdyo":                "studio",
	"Çatı Dubleks":          "penthouse duplex",
	"Normal":                "standard",
	"İkinci El":             "resale",
	"Sıfır":                 "new build",
	"Evet":                  "yes",
	"Hayır":                 "no",
	"Var":                   "yes",
	"Yok":                   "no",
	"Bilinmiyor":            "unknown",
	"Eşyalı":                "furnished",
	"Eşyasız":               "unfurnished",
	"Boş":                   "vacant",
	"Mülk Sahibi Oturuyor":  "owner occupied",
	"Kiracılı":              "tenanted",
	"Krediye Uygun":         "mortgage eligible",
	"Krediye Uygun Değil":   "not mortgage eligible",
	"Kat Mülkiyeti":         "freehold",
	"Kat İrtifakı":          "construction servitude",
	"Kombi Doğalgaz":        "natural gas combi",
	"Merkezi":               "central",
	"Klima":                 "air conditioning",
	"Doğalgaz":              "natural gas",
	"Emlak Ofisi":           "agency",
	"Sahibinden":            "owner",
}

// TranslateKey maps a portal field label to its canonical name. Unknown
// labels come back unchanged.
func TranslateKey(key string) string {
	key = strings.TrimSpace(key)
	if canonical, ok := fieldMap[key]; ok {
		return canonical
	}
	return key
}

// TranslateValue maps an enumerated portal value to its canonical form.
// Unknown values come back cleaned but otherwise unchanged.
func TranslateValue(value string) string {
	value = CleanText(value)
	if canonical, ok := valueMap[value]; ok {
		return canonical
	}
	return value
}

// Apply translates a raw scraped key/value table into canonical fields.
// Keys that don't map to a canonical field are dropped: the canonical
// schema is a fixed vocabulary, not a passthrough.
func Apply(raw map[string]string) map[string]string {
	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		canonical := TranslateKey(key)
		if !isCanonicalField(canonical) {
			continue
		}
		fields[canonical] = TranslateValue(value)
	}
	return fields
}

var canonicalSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(models.FieldOrder))
	for _, name := range models.FieldOrder {
		set[name] = struct{}{}
	}
	return set
}()

func isCanonicalField(name string) bool {
	_, ok := canonicalSet[name]
	return ok
}
