package utils

// Server-side i18n for the handful of messages the API emits itself.
// Field validation messages are authored in French in internal/forms;
// everything purely visual lives in the frontend bundle.

var translations = map[string]map[string]string{
	"fr": {
		"health.ok":              "ok",
		"form.invalid_link":      "Ce lien est invalide ou a expiré.",
		"form.load_failed":       "Impossible de charger le formulaire. Veuillez réessayer.",
		"form.expired":           "Ce lien a expiré. Contactez votre comptable pour en obtenir un nouveau.",
		"form.already_completed": "Ce formulaire a déjà été complété.",
		"form.submit_failed":     "L'envoi du formulaire a échoué. Vos réponses ont été conservées.",
		"form.submitted":         "Formulaire envoyé. Merci !",
	},
	"en": {
		"health.ok":              "ok",
		"form.invalid_link":      "This link is invalid or has expired.",
		"form.load_failed":       "The form could not be loaded. Please try again.",
		"form.expired":           "This link has expired. Contact your accountant for a new one.",
		"form.already_completed": "This form has already been completed.",
		"form.submit_failed":     "The form could not be submitted. Your answers were kept.",
		"form.submitted":         "Form submitted. Thank you!",
	},
}

// T returns the translated string for key in locale; falls back to French,
// then to the key itself.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations["fr"][key]; ok {
		return v
	}
	return key
}
