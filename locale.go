package mobi

// localeLanguages maps the primary language id of a MOBI header locale
// (Windows LCID low byte) to its language tag. Index 0 is the neutral tag;
// further indices are sublanguage (region) variants.
var localeLanguages = map[uint32][]string{
	1:  {"ar"},
	2:  {"bg"},
	3:  {"ca"},
	4:  {"zh", "zh-tw", "zh-cn", "zh-hk", "zh-sg"},
	5:  {"cs"},
	6:  {"da"},
	7:  {"de", "de-de", "de-ch", "de-at", "de-lu", "de-li"},
	8:  {"el"},
	9:  {"en", "en-us", "en-gb", "en-au", "en-ca", "en-nz", "en-ie", "en-za", "en-jm", "", "en-bz", "en-tt", "en-zw", "en-ph"},
	10: {"es", "es-es", "es-mx", "es-es"},
	11: {"fi"},
	12: {"fr", "fr-fr", "fr-be", "fr-ca", "fr-ch", "fr-lu", "fr-mc"},
	13: {"he"},
	14: {"hu"},
	15: {"is"},
	16: {"it", "it-it", "it-ch"},
	17: {"ja"},
	18: {"ko"},
	19: {"nl", "nl-nl", "nl-be"},
	20: {"no", "nb", "nn"},
	21: {"pl"},
	22: {"pt", "pt-br", "pt-pt"},
	23: {"rm"},
	24: {"ro"},
	25: {"ru"},
	26: {"hr", "hr", "sr"},
	27: {"sk"},
	28: {"sq"},
	29: {"sv", "sv-se", "sv-fi"},
	30: {"th"},
	31: {"tr"},
	32: {"ur"},
	33: {"id"},
	34: {"uk"},
	35: {"be"},
	36: {"sl"},
	37: {"et"},
	38: {"lv"},
	39: {"lt"},
	41: {"fa"},
	42: {"vi"},
	43: {"hy"},
	44: {"az"},
	45: {"eu"},
	47: {"mk"},
	54: {"af"},
	55: {"ka"},
	56: {"fo"},
	57: {"hi"},
	62: {"ms"},
	65: {"sw"},
}

// localeTag converts a MOBI header locale to a language tag.
// It returns false when the language id is unknown.
func localeTag(locale uint32) (string, bool) {
	tags, ok := localeLanguages[locale&0xFF]
	if !ok {
		return "", false
	}
	region := int((locale >> 10) & 0x3F)
	if region < len(tags) && tags[region] != "" {
		return tags[region], true
	}
	return tags[0], true
}
