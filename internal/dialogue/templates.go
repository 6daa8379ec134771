package dialogue

import (
	"fmt"
	"hash/fnv"

	"github.com/molbhav/molbhav/pkg/types"
)

// priceBucket groups nearby prices so a session keeps one voice while the
// price drifts within a band.
const priceBucket = 500

// templates holds the deterministic fallback lines per tactic and language.
// Each line takes the formatted price once. Variants exist so consecutive
// rounds do not read copy-pasted; the variant choice is a stable hash, not
// random, to avoid persona drift within a session.
var templates = map[types.Tactic]map[string][]string{
	types.TacticOpeningAnchor: {
		"en": {
			"Welcome! This one goes for ₹%s — top quality, you won't regret it.",
			"Good choice! Fresh stock, fixed at ₹%s. Have a look.",
		},
		"hi": {
			"Aaiye aaiye! Yeh wala ₹%s ka hai — ekdum badhiya maal hai.",
			"Bhaiya, yeh piece ₹%s ka hai. Quality dekh lo pehle.",
		},
		"ta": {"Vanakkam! Idhu ₹%s — romba nalla quality, paarunga."},
		"te": {"Randi randi! Idi ₹%s — manchi quality, chudandi."},
		"mr": {"Ya ya! He ₹%s la aahe — ekdam chaan maal aahe."},
	},
	types.TacticAccept: {
		"en": {
			"Done! ₹%s it is. You drive a hard bargain — it's yours.",
			"Alright, ₹%s, final. Pleasure doing business with you!",
		},
		"hi": {
			"Pakka! ₹%s final. Aap toh mol-bhav ke ustad nikle — le jaiye.",
			"Theek hai bhaiya, ₹%s mein deal pakki. Mubarak ho!",
		},
		"ta": {"Seri seri, ₹%s ku mudinchiduchu. Ungaludaiyadhu!"},
		"te": {"Sare, ₹%s ki okay. Mee dhe!"},
		"mr": {"Thik aahe, ₹%s la deal pakki. Ghya!"},
	},
	types.TacticBotBlock: {
		"en": {"Something's off with these offers. Let's stop here — come back and talk like a real customer."},
		"hi": {"Bhaiya, yeh offers kuch ajeeb aa rahe hain. Abhi yahin rukte hain."},
		"ta": {"Indha offers konjam vinodhama irukku. Ippo niruthalam."},
		"te": {"Ee offers konchem vintaga unnayi. Ikkada aapeddam."},
		"mr": {"He offers jara vichitra vatat aahet. Ithech thambuya."},
	},
	types.TacticDeadline: {
		"en": {"We've gone back and forth long enough — can't close at that price. Come by another day."},
		"hi": {"Bahut der se mol-bhav chal raha hai bhaiya, is daam pe nahi hoga. Phir kabhi aana."},
		"ta": {"Neraya pesittom, indha vilaikku mudiyadhu. Innoru naal vaanga."},
		"te": {"Chala sepu matladam, ee dharaku kudaradhu. Inko roju randi."},
		"mr": {"Khup vel jhala, hya kimtit jamnar nahi. Punha ya."},
	},
	types.TacticWalkAwaySave: {
		"en": {
			"Wait, wait — don't go! Just for you, ₹%s. That's me cutting my own margin.",
			"Arre, one minute! Special price, only for you: ₹%s. Last chance.",
		},
		"hi": {
			"Arre rukiye rukiye! Sirf aapke liye ₹%s. Apna margin kaat raha hoon.",
			"Ek minute bhaiya! Special daam, sirf aapke liye: ₹%s. Aakhri mauka.",
		},
		"ta": {"Konjam iruunga! Ungalukkaga mattum ₹%s. Idhu kadaisi vilai."},
		"te": {"Aagandi aagandi! Mee kosam matrame ₹%s. Ide last price."},
		"mr": {"Thamba thamba! Fakt tumchyasathi ₹%s. Hi shevatchi offer."},
	},
	types.TacticAnchorDefense: {
		"en": {
			"At that price I'd be paying you! ₹%s is the rate — this is genuine stock.",
			"No no, that won't even cover my cost. ₹%s, and that's honest.",
		},
		"hi": {
			"Itne mein toh apna hi nuksaan hai bhaiya! ₹%s hai daam, asli maal hai.",
			"Na na, isse toh cost bhi nahi nikle gi. ₹%s bol raha hoon, imaandari se.",
		},
		"ta": {"Andha vilaikku enakku nashtam! ₹%s dhaan vilai, nijama."},
		"te": {"Aa dharaku naaku nastam! ₹%s ye dhara, nijam."},
		"mr": {"Tya kimtit mala tota hoil! ₹%s aahe bhav, kharach."},
	},
	types.TacticQuantityPivot: {
		"en": {
			"Tell you what — price stays ₹%s, but take two and I'll sweeten the deal per piece.",
			"Single piece stays at ₹%s. Take a pair and we can talk properly.",
		},
		"hi": {
			"Aisa karte hain — daam ₹%s hi rahega, par do lijiye toh per piece kam lagaunga.",
			"Ek ka daam ₹%s hi hai bhaiya. Do le lo, phir baat banti hai.",
		},
		"ta": {"Oru velai pannunga — vilai ₹%s dhaan, aana rendu vaangunga, piece-ku kammi pannuren."},
		"te": {"Ila cheddam — dhara ₹%s ne, kaani rendu teesukondi, piece ki thaggistanu."},
		"mr": {"Asa karuya — bhav ₹%s cha rahil, pan don ghya, per piece kami karto."},
	},
	types.TacticConcession: {
		"en": {
			"Okay okay, you're a tough one. ₹%s — I'm coming down for you.",
			"Fine, for you: ₹%s. See how much I've already dropped?",
		},
		"hi": {
			"Accha accha, aap tough grahak ho. ₹%s — aapke liye utar raha hoon.",
			"Chaliye, aapke liye ₹%s. Dekhiye kitna kam kar diya maine.",
		},
		"ta": {"Seri seri, neenga kadinam. ₹%s — ungalukkaga korachirukken."},
		"te": {"Sare sare, meeru gattivaru. ₹%s — mee kosam thaggistunna."},
		"mr": {"Bara bara, tumhi pakke aahat. ₹%s — tumchyasathi kami karto."},
	},
	types.TacticTimeout: {
		"en": {"You went quiet on me! The session's lapsed — start fresh when you're back."},
		"hi": {"Aap toh gayab hi ho gaye bhaiya! Session khatam — wapas aao toh naya shuru karte hain."},
		"ta": {"Neenga pogittinga pola! Session mudinjiduchu — thirumbi vandha pudhusa aarambikalam."},
		"te": {"Meeru vellipoyaru! Session aipoindi — malli vaste kottaga modalu peddam."},
		"mr": {"Tumhi gayab jhalat! Session sampla — parat ala ki navin suru karu."},
	},
}

// formatPrice renders a rupee amount with Indian digit grouping dropped in
// favour of a plain integer; vernacular templates carry the ₹ sign.
func formatPrice(price float64) string {
	return fmt.Sprintf("%.0f", price)
}

// Template returns the deterministic line for a tactic, price and language.
// The same (tactic, price bucket, language) always yields the same variant,
// so a session's voice stays stable across retries.
func Template(tactic types.Tactic, price float64, language string) string {
	byLang, ok := templates[tactic]
	if !ok {
		byLang = templates[types.TacticConcession]
	}

	variants, ok := byLang[language]
	if !ok {
		language = "en"
		variants = byLang[language]
	}

	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%d|%s", tactic, int(price)/priceBucket, language)
	line := variants[int(h.Sum32())%len(variants)]

	if tactic == types.TacticBotBlock || tactic == types.TacticDeadline || tactic == types.TacticTimeout {
		return line
	}

	return fmt.Sprintf(line, formatPrice(price))
}
