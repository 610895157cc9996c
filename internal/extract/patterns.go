package extract

import (
	"regexp"
	"strings"

	"github.com/maildeskhq/maildesk/pkg/models"
)

// extractorFunc is one pure fact extractor. Each validates its own match
// shape and reports ok=false instead of guessing. The order of
// factExtractors defines the order of the resulting fact list.
type extractorFunc func(text string) (models.Fact, bool)

var factExtractors = []extractorFunc{
	extractCustomerName,
	extractCustomerNumber,
	extractCompany,
	extractEmail,
	extractPhone,
	extractMobile,
	extractStreet,
	extractPostalCity,
	extractCustomerSince,
	extractRevenue,
	extractOrderCount,
	extractLastOrder,
	extractPaymentMethod,
	extractTrackingCode,
	extractShippingStatus,
	extractOpenTickets,
	extractConcern,
	extractRecommendedAction,
}

var (
	customerNameRe   = regexp.MustCompile(`(?mi)^[ \t*-]*(?:kunde|kundenname)\s*:\s*(.+)$`)
	customerNumberRe = regexp.MustCompile(`(?i)kunden(?:nummer|nr\.?)[ \t]*[:#]?[ \t]*([A-Za-z]{0,3}-?\d{3,12})`)
	companyRe        = regexp.MustCompile(`(?mi)^[ \t*-]*(?:firma|unternehmen)\s*:\s*(.+)$`)
	emailRe          = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe          = regexp.MustCompile(`(?i)(?:telefon|tel\.?|festnetz)[ \t]*:?[ \t]*(\+?[0-9][0-9 \t/\-().]{3,24}[0-9])`)
	mobileRe         = regexp.MustCompile(`(?i)(?:mobil|handy)[ \t]*:?[ \t]*(\+?[0-9][0-9 \t/\-().]{3,24}[0-9])`)
	streetLineRe     = regexp.MustCompile(`(?mi)^[ \t*-]*(?:straße|strasse|adresse)\s*:\s*(.+)$`)
	streetInlineRe   = regexp.MustCompile(`\b([A-ZÄÖÜ][a-zäöüß.\-]+(?:straße|strasse|weg|gasse|allee|platz|ring)[ \t]+\d{1,4}[a-z]?)\b`)
	postalCityRe     = regexp.MustCompile(`\b(\d{5})[ \t]+([A-ZÄÖÜ][A-Za-zäöüß\-]+(?:[ \t][A-ZÄÖÜ][A-Za-zäöüß\-]+)?)`)
	customerSinceRe  = regexp.MustCompile(`(?i)kunde[ \t]+seit[ \t]*:?[ \t]*([\d./\-]{4,10})`)
	revenueRe        = regexp.MustCompile(`(?i)(?:gesamt)?umsatz[ \t]*:?[ \t]*(?:€[ \t]*)?(\d[\d.,]*)`)
	orderCountRe     = regexp.MustCompile(`(?i)(?:(\d+)[ \t]+bestellungen|bestellungen[ \t]*:?[ \t]*(\d+))`)
	lastOrderRe      = regexp.MustCompile(`(?i)letzte[ \t]+bestellung[ \t]*(?:am|vom)?[ \t]*:?[ \t]*([\d./\-]{6,10})`)
	paymentMethodRe  = regexp.MustCompile(`(?mi)^[ \t*-]*(?:zahlungsart|zahlungsmethode)\s*:\s*(.+)$`)
	trackingRe       = regexp.MustCompile(`(?i)(?:sendungs|tracking)(?:nummer|nr\.?|code|id)?[ \t]*:?[ \t]*([A-Z0-9]{8,30})\b`)
	shippingLineRe   = regexp.MustCompile(`(?mi)^[ \t*-]*(?:versandstatus|sendungsstatus|lieferstatus)\s*:\s*(.+)$`)
	shippingWordRe   = regexp.MustCompile(`(?i)\b(zugestellt|in zustellung|unterwegs|versendet|in bearbeitung|verzögert)\b`)
	openTicketsRe    = regexp.MustCompile(`(?i)(?:(\d+)[ \t]+offene[ \t]+tickets?|offene[ \t]+tickets?[ \t]*:?[ \t]*(\d+))`)
	concernRe        = regexp.MustCompile(`(?mi)^[ \t*-]*anliegen\s*:\s*(.+)$`)
	actionRe         = regexp.MustCompile(`(?mi)^[ \t*-]*(?:empfohlene[ \t]+aktion|empfehlung)\s*:\s*(.+)$`)

	consecutiveDigitsRe = regexp.MustCompile(`\d{5,}`)
	dateLikeRe          = regexp.MustCompile(`^(?:\d{1,2}\.[ \t]?\d{1,2}\.[ \t]?\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{4}|\d{4})$`)
	digitsSeparatorsRe  = regexp.MustCompile(`^[\d.,]+$`)
)

func extractCustomerName(text string) (models.Fact, bool) {
	value := firstGroup(customerNameRe, text)
	if value == "" || strings.ContainsAny(value, "0123456789") || len(strings.Fields(value)) > 5 {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconPerson, Label: "Kunde", Value: value}, true
}

func extractCustomerNumber(text string) (models.Fact, bool) {
	value := firstGroup(customerNumberRe, text)
	if value == "" {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconInfo, Label: "Kundennummer", Value: strings.ToUpper(value)}, true
}

func extractCompany(text string) (models.Fact, bool) {
	value := firstGroup(companyRe, text)
	if value == "" || len(strings.Fields(value)) > 6 {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconBuilding, Label: "Firma", Value: value}, true
}

func extractEmail(text string) (models.Fact, bool) {
	value := emailRe.FindString(text)
	if value == "" {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconMail, Label: "E-Mail", Value: value}, true
}

func extractPhone(text string) (models.Fact, bool) {
	value := firstGroup(phoneRe, text)
	if !phoneShape(value) {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconPhone, Label: "Telefon", Value: value}, true
}

func extractMobile(text string) (models.Fact, bool) {
	value := firstGroup(mobileRe, text)
	if !phoneShape(value) {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconPhone, Label: "Mobil", Value: value}, true
}

func extractStreet(text string) (models.Fact, bool) {
	value := firstGroup(streetLineRe, text)
	if value == "" {
		value = firstGroup(streetInlineRe, text)
	}
	if value == "" || !strings.ContainsAny(value, "0123456789") {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconHome, Label: "Straße", Value: value}, true
}

func extractPostalCity(text string) (models.Fact, bool) {
	m := postalCityRe.FindStringSubmatch(text)
	if m == nil {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconHome, Label: "PLZ/Ort", Value: m[1] + " " + m[2]}, true
}

func extractCustomerSince(text string) (models.Fact, bool) {
	value := firstGroup(customerSinceRe, text)
	if !dateLikeRe.MatchString(value) {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconCalendar, Label: "Kunde seit", Value: value}, true
}

func extractRevenue(text string) (models.Fact, bool) {
	value := firstGroup(revenueRe, text)
	if value == "" || !digitsSeparatorsRe.MatchString(value) {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconEuro, Label: "Umsatz", Value: value + " €"}, true
}

func extractOrderCount(text string) (models.Fact, bool) {
	value := firstGroup(orderCountRe, text)
	if value == "" {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconPackage, Label: "Bestellungen", Value: value}, true
}

func extractLastOrder(text string) (models.Fact, bool) {
	value := firstGroup(lastOrderRe, text)
	if !dateLikeRe.MatchString(value) {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconCalendar, Label: "Letzte Bestellung", Value: value}, true
}

func extractPaymentMethod(text string) (models.Fact, bool) {
	value := firstGroup(paymentMethodRe, text)
	if value == "" || len(strings.Fields(value)) > 3 {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconCreditCard, Label: "Zahlungsart", Value: value}, true
}

func extractTrackingCode(text string) (models.Fact, bool) {
	value := firstGroup(trackingRe, text)
	if value == "" || digitCount(value) < 4 {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconTruck, Label: "Sendungsnummer", Value: value}, true
}

func extractShippingStatus(text string) (models.Fact, bool) {
	value := firstGroup(shippingLineRe, text)
	if value == "" {
		value = firstGroup(shippingWordRe, text)
	}
	if value == "" || len(strings.Fields(value)) > 4 {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconTruck, Label: "Versandstatus", Value: value}, true
}

func extractOpenTickets(text string) (models.Fact, bool) {
	value := firstGroup(openTicketsRe, text)
	if value == "" {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconTicket, Label: "Offene Tickets", Value: value}, true
}

func extractConcern(text string) (models.Fact, bool) {
	value := firstGroup(concernRe, text)
	if value == "" {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconInfo, Label: "Anliegen", Value: value}, true
}

func extractRecommendedAction(text string) (models.Fact, bool) {
	value := firstGroup(actionRe, text)
	if value == "" {
		return models.Fact{}, false
	}
	return models.Fact{Icon: models.FactIconCheck, Label: "Empfohlene Aktion", Value: value}, true
}

// firstGroup returns the first non-empty capture group of the first match.
func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	for _, group := range m[1:] {
		if group != "" {
			return strings.TrimSpace(group)
		}
	}
	return ""
}

// phoneShape requires at least 5 consecutive digits once whitespace and
// common separators are stripped.
func phoneShape(value string) bool {
	if value == "" {
		return false
	}
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '/', '-', '(', ')', '.':
			return -1
		}
		return r
	}, value)
	return consecutiveDigitsRe.MatchString(stripped)
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
