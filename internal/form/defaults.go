package form

// Style keys.
const (
	StyleBackground      = "background"
	StyleFormWidth       = "formWidth"
	StyleHeading         = "heading"
	StyleHeadingColor    = "headingColor"
	StyleInputLabelColor = "inputLabelColor"
	StyleButtonColor     = "buttonColor"
	StyleButtonText      = "buttonText"
)

// Preference flag keys.
const (
	FlagEmail = "email"
	FlagSMS   = "sms"
	FlagPush  = "pushNotifications"
)

// DefaultStyles returns a fresh map holding every style key with its default.
func DefaultStyles() map[string]string {
	return map[string]string{
		StyleBackground:      "#ffffff",
		StyleFormWidth:       "400px",
		StyleHeading:         "",
		StyleHeadingColor:    "#000000",
		StyleInputLabelColor: "#4a5568",
		StyleButtonColor:     "#4299e1",
		StyleButtonText:      "Submit",
	}
}

// DefaultPreferenceFlags returns a fresh map of the legacy preference flags.
func DefaultPreferenceFlags() map[string]bool {
	return map[string]bool{
		FlagEmail: true,
		FlagSMS:   false,
		FlagPush:  false,
	}
}
