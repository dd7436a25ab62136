package outbound

import (
	"fmt"
	"strings"
)

// Script renders the fixed dialogue lines for one call. What to say is
// templated here; how to interpret the callee is the classifier's job.
type Script struct {
	Call CallContext
}

// Opening is the fixed opening line, spoken as soon as the callee answers.
func (s Script) Opening() string {
	return fmt.Sprintf(
		"Hi %s, this is Elliott, I'm with a local realtor. I was checking your property in %s. Do you still own that by any chance?",
		s.Call.FirstName, s.Call.City)
}

// Question returns the scripted question for a state. Empty for states
// with no question of their own.
func (s Script) Question(state CallState) string {
	switch state {
	case StateOwnershipCheck:
		// The opening line doubles as the ownership question.
		return ""
	case StateInterestCheck:
		return fmt.Sprintf(
			"Got it, with the home prices being so high in %s right now, would you consider selling at this time?",
			s.Call.City)
	case StateAddressConfirm:
		return fmt.Sprintf("Is your home address still %s?", s.Call.Address)
	case StateReasonForSelling:
		return "And just so I understand, what's really prompting you to explore selling right now?"
	case StateTimeline:
		return "When are you ideally hoping to have it sold? Are you thinking in the next few weeks, or sometime later this year?"
	case StatePriceExpectation:
		return "Do you have a ballpark price in mind that you'd feel good about selling at?"
	case StateListingConsent:
		return "I can definitely get you a very good price for your property by selecting a realtor for you that can get that. Would you be open to listing the property anytime soon with a realtor of our choosing if the price and terms made sense?"
	case StateCallbackTime:
		return fmt.Sprintf(
			"Just so I make sure %s is available when you are, what's the best time today or tomorrow for a call?",
			realtorFirstName(s.Call.RealtorName))
	case StateFinalRemarks:
		return "Is there anything else you'd like to add before I let you go?"
	default:
		return ""
	}
}

// QualificationIntro bridges from interest into the qualification steps.
func (s Script) QualificationIntro() string {
	return "Great, just a couple quick questions so we can match you with the right buyer."
}

// Clarify is the single clarifying re-ask for a vague answer.
func (s Script) Clarify() string {
	return "Just to make sure we give you an accurate report, could you share a bit more detail on that?"
}

// WrapUpIntro is spoken once all qualification questions are answered.
func (s Script) WrapUpIntro() string {
	name := s.Call.RealtorName
	first := realtorFirstName(name)
	return fmt.Sprintf(
		"Thanks for that, %s will reach out shortly to help you move forward. %s is a trusted realtor in your area who's helped over 100 homeowners sell quickly and for top dollar.",
		name, first)
}

// CallbackAck acknowledges a collected callback time.
func (s Script) CallbackAck() string {
	return "Perfect, I've noted that down and the realtor will call you then."
}

// Close is the polite closing line.
func (s Script) Close() string {
	return "Thanks again for your time. Take care!"
}

// WhichProperty answers "which property?" with the address on file.
func (s Script) WhichProperty() string {
	return fmt.Sprintf("I am referring to %s.", s.Call.Address)
}

// Introduction answers "who are you?" and "which company are you with?".
func (s Script) Introduction() string {
	return fmt.Sprintf(
		"I'm Elliott. I'm not with a specific company, but I work directly with a few trusted agents from firms like Compass and Keller Williams. The current agent I'm working with is %s.",
		s.Call.RealtorName)
}

// NumberSource answers "how did you get my number?".
func (s Script) NumberSource() string {
	return "We use public property records and real estate databases to reach out to homeowners."
}

// Deflection is the fixed refusal for out-of-script questions.
func (s Script) Deflection() string {
	return "I do not make offers or give out property valuations as I am not the expert. That's something our team goes over with homeowners who are open to selling now."
}

// RemovalAck acknowledges a do-not-call or hostile response.
func (s Script) RemovalAck() string {
	return "Understood, we'll remove you from our list."
}

// BusyAsk responds to "can't talk now" by collecting a callback time.
func (s Script) BusyAsk() string {
	return "Totally understood. What's the best time to call you back?"
}

// BusyAck confirms a callback time collected after a busy response.
func (s Script) BusyAck() string {
	return "Sounds good, I will call you then. Take care!"
}

// AlreadyListedAck wishes them luck when the property is on the market.
func (s Script) AlreadyListedAck() string {
	return "Totally understood, good luck with selling it. Thanks for your time!"
}

// NotSellingAck is spoken before ending when they are not open to selling.
func (s Script) NotSellingAck() string {
	return "Understood, thanks for your time."
}

func realtorFirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}
