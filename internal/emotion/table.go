package emotion

// Emotion is the primary emotional state detected in an utterance.
type Emotion string

const (
	Neutral    Emotion = "NEUTRAL"
	Humorous   Emotion = "HUMOROUS"
	Frustrated Emotion = "FRUSTRATED"
	Angry      Emotion = "ANGRY"
	Stressed   Emotion = "STRESSED"
	Panicked   Emotion = "PANICKED"
	Sad        Emotion = "SAD"
	Urgent     Emotion = "URGENT"
)

// category is one row of the scoring table.
type category struct {
	emotion       Emotion
	keywords      []string
	phrases       []string
	disqualifiers []string
	multiplier    float64
}

const (
	keywordPoints  = 0.15
	phrasePoints   = 0.30
	minPrimary     = 0.10
	punctBoost     = 0.10
	maxPunctBoost  = 0.20
	capsBoost      = 0.05
	maxCapsBoost   = 0.20
	repeatBoost    = 0.10
	profanityBoost = 0.10
	maxProfanity   = 0.30
	secondCall     = 0.10
	repeatCaller   = 0.20
)

// categories is evaluated in order; on equal scores the earlier row wins.
var categories = []category{
	{
		emotion:       Panicked,
		keywords:      []string{"panicking", "terrified", "scared", "freaking", "hysterical"},
		phrases:       []string{"freaking out", "don't know what to do", "oh my god", "please hurry", "help me"},
		disqualifiers: []string{"not scared", "not panicking", "no need to panic"},
		multiplier:    1.3,
	},
	{
		emotion:       Angry,
		keywords:      []string{"angry", "furious", "pissed", "livid", "ridiculous", "unacceptable", "outrageous", "incompetent"},
		phrases:       []string{"third time", "this is ridiculous", "sick of", "fed up", "want a refund", "speak to a manager", "worst service"},
		disqualifiers: []string{"not angry", "not mad", "not upset"},
		multiplier:    1.2,
	},
	{
		emotion:       Frustrated,
		keywords:      []string{"frustrated", "frustrating", "annoyed", "annoying", "again", "still", "tired"},
		phrases:       []string{"still not working", "keeps happening", "already called", "nobody called", "no one called", "waited all day", "second time"},
		disqualifiers: []string{"not frustrated", "not annoyed", "no worries"},
		multiplier:    1.0,
	},
	{
		emotion:       Urgent,
		keywords:      []string{"urgent", "emergency", "immediately", "ASAP", "now", "hurry", "quickly"},
		phrases:       []string{"right away", "right now", "as soon as possible", "can't wait", "need someone today", "today if possible"},
		disqualifiers: []string{"no rush", "not urgent", "whenever", "no hurry", "not an emergency", "take your time"},
		multiplier:    1.1,
	},
	{
		emotion:       Stressed,
		keywords:      []string{"stressed", "overwhelmed", "worried", "anxious", "nervous", "baby", "elderly"},
		phrases:       []string{"so much going on", "at my wits end", "don't have time", "newborn at home", "guests coming"},
		disqualifiers: []string{"not worried", "not stressed"},
		multiplier:    1.0,
	},
	{
		emotion:       Sad,
		keywords:      []string{"sad", "upset", "crying", "devastated", "heartbroken", "depressed"},
		phrases:       []string{"passed away", "lost my", "bad week", "can't afford"},
		disqualifiers: []string{"not sad", "not upset"},
		multiplier:    0.9,
	},
	{
		emotion:       Humorous,
		keywords:      []string{"haha", "lol", "hilarious", "funny", "joking", "kidding"},
		phrases:       []string{"just kidding", "you'll laugh", "believe it or not"},
		disqualifiers: []string{"not funny", "no joke", "not kidding", "not joking"},
		multiplier:    0.8,
	},
}

// hazardPhrases drive IsEmergency. Kept separate from the scoring table so
// the safety check never depends on a full analysis pass. A named hazard is
// never cancelled by a negation elsewhere in the utterance.
var hazardPhrases = []string{
	"fire", "on fire", "smoke", "smoking", "flames", "sparks", "sparking",
	"gas leak", "smell gas", "smells like gas", "gas smell", "carbon monoxide",
	"co alarm", "co detector", "flood", "flooding", "flooded", "burst pipe",
	"pipe burst", "water everywhere", "sewage backup", "electrocuted",
	"shock", "exposed wires",
}

// emergencyWords claim an emergency without naming a hazard.
var emergencyWords = []string{"emergency"}

// emergencyNegations cancel emergencyWords only.
var emergencyNegations = []string{
	"not an emergency", "no emergency", "isn't an emergency", "not urgent",
	"isn't urgent", "not that urgent", "not really urgent",
}

// benignHazardTerms name equipment, not hazards. They are blanked before the
// hazard scan.
var benignHazardTerms = []string{
	"fire alarm", "smoke alarm", "smoke detector", "fire extinguisher",
	"fire pit", "fire station",
}

var profanity = map[string]bool{
	"damn": true, "dammit": true, "hell": true, "crap": true, "shit": true,
	"bullshit": true, "fuck": true, "fucking": true, "ass": true, "bastard": true,
	"bitch": true, "piss": true, "pissed": true,
}

// acronyms are common upper-case tokens that carry no emotional weight.
var acronyms = map[string]bool{
	"AC": true, "HVAC": true, "ASAP": true, "CO": true, "CO2": true, "GFCI": true,
	"OK": true, "TV": true, "LED": true, "BTU": true, "PM": true, "AM": true,
	"USA": true, "ID": true,
}
