package safety

// Diet categories. The corrected category can only move toward the more
// restrictive end: detected animal protein always wins.
const (
	CategoryAnimalProtein = "animal protein"
	CategoryVegetarian    = "vegetarian"
	CategoryVegan         = "vegan"
	CategoryUnknown       = "unknown"
)

// animalProteinTerms force the "animal protein" category. Generic words that
// commonly have vegan versions (burger, fillet) are deliberately absent.
var animalProteinTerms = []string{
	// red meat
	"beef", "ground beef", "steak", "sirloin", "ribeye", "brisket",
	"pork", "pork belly", "pork loin", "spare ribs", "veal", "lamb",
	"mutton", "goat", "venison", "oxtail", "tripe", "liver", "meatball",
	// poultry
	"chicken", "chicken breast", "chicken wing", "chicken thigh",
	"turkey", "duck", "quail",
	// cured and processed
	"bacon", "ham", "prosciutto", "salami", "sausage", "chorizo",
	"pepperoni", "mortadella", "pastrami", "pancetta",
	// fish
	"fish", "fish fillet", "tilapia", "salmon", "tuna", "cod", "codfish",
	"sardine", "anchovy", "trout", "mackerel", "sea bass", "haddock",
	"halibut", "catfish", "snapper",
	// seafood
	"shrimp", "prawn", "lobster", "crab", "crayfish", "squid", "calamari",
	"octopus", "mussel", "clam", "oyster", "scallop", "seafood",
}

// animalDerivativeTerms (egg, dairy, honey) force "vegetarian" when present
// without animal protein. Vegan-equivalent phrases override them.
var animalDerivativeTerms = []string{
	// egg
	"egg", "eggs", "yolk", "egg white", "omelet", "omelette",
	"mayonnaise", "mayo", "aioli", "meringue", "custard",
	// dairy
	"milk", "cheese", "mozzarella", "parmesan", "cheddar", "provolone",
	"gorgonzola", "brie", "camembert", "ricotta", "cottage cheese",
	"cream cheese", "butter", "ghee", "cream", "sour cream",
	"whipped cream", "yogurt", "yoghurt", "kefir", "condensed milk",
	// other
	"honey", "royal jelly",
}

// veganEquivalentPhrases are plant-based phrases whose words overlap the
// derivative terms. A derivative occurring only inside one of these phrases
// is not a derivative.
var veganEquivalentPhrases = []string{
	"vegan cheese", "cashew cheese", "almond cheese", "coconut cheese",
	"plant based cheese", "vegan mozzarella", "vegan parmesan",
	"vegan cream cheese", "vegan cheddar",
	"coconut milk", "almond milk", "soy milk", "oat milk", "rice milk",
	"cashew milk", "plant milk",
	"vegan butter", "coconut butter", "peanut butter", "almond butter",
	"cashew butter",
	"coconut cream", "soy cream", "vegan cream", "vegan whipped cream",
	"vegan mayonnaise", "vegan mayo", "vegan aioli",
	"coconut yogurt", "soy yogurt", "almond yogurt", "vegan yogurt",
	"vegan egg", "egg substitute",
	"vegan honey",
}

// decorativeMarkers name linguistic contexts in which a mentioned ingredient
// is not actually eaten. A term whose every occurrence is tied to one of
// these through a connector ("garnish of X", "X for decoration") is dropped
// from both category and allergen detection.
var decorativeMarkers = []string{
	"garnish", "garnished", "decoration", "decorated", "decorate",
	"plating", "presentation",
}

// allergenGroups maps each allergen group to its trigger terms.
var allergenGroups = map[string][]string{
	"gluten": {
		"wheat", "rye", "barley", "malt", "bread", "breadcrumbs", "pasta",
		"noodle", "noodles", "flour", "cracker", "cookie", "cake", "pastry",
		"pizza", "couscous", "beer",
	},
	"dairy": {
		"milk", "cheese", "butter", "cream", "yogurt", "yoghurt",
		"mozzarella", "parmesan", "cheddar", "ricotta", "whey", "lactose",
		"ghee", "kefir",
	},
	"egg": {
		"egg", "eggs", "yolk", "mayonnaise", "mayo", "aioli", "meringue",
		"custard",
	},
	"shellfish": {
		"shrimp", "prawn", "lobster", "crab", "crayfish",
	},
	"fish": {
		"fish", "salmon", "tuna", "cod", "sardine", "anchovy", "tilapia",
		"trout", "mackerel",
	},
	"peanut": {
		"peanut", "peanuts", "peanut butter",
	},
	"tree-nut": {
		"walnut", "walnuts", "almond", "almonds", "cashew", "cashews",
		"hazelnut", "hazelnuts", "pistachio", "pistachios", "macadamia",
		"pecan", "pecans", "chestnut", "brazil nut",
	},
	"soy": {
		"soy", "soybean", "tofu", "edamame", "tempeh", "miso", "soy sauce",
	},
	"sesame": {
		"sesame", "tahini",
	},
}
