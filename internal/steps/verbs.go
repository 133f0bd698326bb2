package steps

// verbRule describes how a canonical action verb maps onto duration,
// equipment and phase defaults.
type verbRule struct {
	defaultMinutes int
	equipment      Equipment
	phase          Phase
	passiveOK      bool
}

// passiveThresholdMinutes: a passive-capable verb only yields a passive step
// when its duration exceeds this; a 2-minute simmer still needs eyes on it.
const passiveThresholdMinutes = 5

// verbTable maps canonical verbs to their rules.
var verbTable = map[string]verbRule{
	// prep
	"chop":     {5, EquipmentPrepArea, PhasePrep, false},
	"slice":    {5, EquipmentPrepArea, PhasePrep, false},
	"grate":    {4, EquipmentPrepArea, PhasePrep, false},
	"peel":     {4, EquipmentPrepArea, PhasePrep, false},
	"wash":     {3, EquipmentPrepArea, PhasePrep, false},
	"mix":      {4, EquipmentPrepArea, PhasePrep, false},
	"blend":    {3, EquipmentPrepArea, PhasePrep, false},
	"season":   {2, EquipmentPrepArea, PhasePrep, false},
	"measure":  {2, EquipmentPrepArea, PhasePrep, false},
	"marinate": {30, EquipmentHandsFree, PhasePrep, true},
	"soak":     {20, EquipmentHandsFree, PhasePrep, true},

	// cooking
	"preheat": {10, EquipmentOven, PhaseCooking, true},
	"bake":    {25, EquipmentOven, PhaseCooking, true},
	"roast":   {30, EquipmentOven, PhaseCooking, true},
	"saute":   {8, EquipmentStovetop, PhaseCooking, false},
	"fry":     {8, EquipmentStovetop, PhaseCooking, false},
	"boil":    {10, EquipmentStovetop, PhaseCooking, false},
	"simmer":  {15, EquipmentStovetop, PhaseCooking, true},
	"steam":   {10, EquipmentStovetop, PhaseCooking, false},
	"grill":   {10, EquipmentStovetop, PhaseCooking, false},
	"cook":    {10, EquipmentStovetop, PhaseCooking, false},
	"heat":    {5, EquipmentStovetop, PhaseCooking, false},
	"melt":    {3, EquipmentStovetop, PhaseCooking, false},
	"toast":   {4, EquipmentStovetop, PhaseCooking, false},

	// finishing
	"rest":    {10, EquipmentHandsFree, PhaseFinishing, true},
	"cool":    {15, EquipmentHandsFree, PhaseFinishing, true},
	"plate":   {3, EquipmentHandsFree, PhaseFinishing, false},
	"garnish": {2, EquipmentHandsFree, PhaseFinishing, false},
	"serve":   {2, EquipmentHandsFree, PhaseFinishing, false},
	"drizzle": {1, EquipmentHandsFree, PhaseFinishing, false},
}

// verbSynonyms folds spelling variants and near-synonyms onto canonical
// verbs so batch keys match across recipes.
var verbSynonyms = map[string]string{
	"dice":     "chop",
	"mince":    "chop",
	"cube":     "chop",
	"shred":    "grate",
	"rinse":    "wash",
	"whisk":    "mix",
	"stir":     "mix",
	"combine":  "mix",
	"beat":     "mix",
	"sauté":    "saute",
	"sautee":   "saute",
	"pan-fry":  "fry",
	"stir-fry": "fry",
	"sprinkle": "garnish",
	"top":      "garnish",
	"rested":   "rest",
	"broil":    "roast",
	"warm":     "heat",
	"chill":    "cool",
	"refrigerate": "cool",
}

// canonicalVerb resolves a word to its canonical verb, if it is one.
func canonicalVerb(word string) (string, bool) {
	if syn, ok := verbSynonyms[word]; ok {
		word = syn
	}
	_, ok := verbTable[word]
	return word, ok
}
