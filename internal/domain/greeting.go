package domain

import (
	"fmt"
	"time"
)

// Default quote shown when the selected date is not the owner's birthday.
const (
	DefaultQuote       = "Success is the sum of small efforts repeated day in and day out."
	DefaultQuoteAuthor = "Robert Collier"
	BirthdaySignoff    = "Have a wonderful day!"
)

// Greeting is the banner text for a selected date.
type Greeting struct {
	Birthday bool
	Age      int
	Message  string
	Byline   string
}

// IsBirthday reports whether on falls on the anniversary of birth.
func IsBirthday(birth, on Date) bool {
	if birth.IsZero() || on.IsZero() {
		return false
	}
	o := on.In(time.UTC)
	return BornOn(birth, o.Month(), o.Day())
}

// BornOn reports whether birth falls on month and day of any year.
func BornOn(birth Date, month time.Month, day int) bool {
	if birth.IsZero() {
		return false
	}
	b := birth.In(time.UTC)
	return !b.IsZero() && b.Month() == month && b.Day() == day
}

// AgeOn returns the completed years between birth and on.
func AgeOn(birth, on Date) int {
	b, o := birth.In(time.UTC), on.In(time.UTC)
	age := o.Year() - b.Year()
	if o.Month() < b.Month() || (o.Month() == b.Month() && o.Day() < b.Day()) {
		age--
	}
	return age
}

// OrdinalSuffix returns the English suffix for n (1st, 2nd, 3rd, 11th).
func OrdinalSuffix(n int) string {
	j, k := n%10, n%100
	switch {
	case j == 1 && k != 11:
		return "st"
	case j == 2 && k != 12:
		return "nd"
	case j == 3 && k != 13:
		return "rd"
	default:
		return "th"
	}
}

// BirthdayMessage returns the personalised message for a birthday at age.
func BirthdayMessage(age int, name string) string {
	ordinal := fmt.Sprintf("%d%s", age, OrdinalSuffix(age))

	switch age {
	case 1:
		return fmt.Sprintf("Happy 1st Birthday %s! One year of amazing you!", name)
	case 5:
		return fmt.Sprintf("Happy 5th Birthday %s! Five years of joy!", name)
	case 10:
		return fmt.Sprintf("Happy %s Birthday %s! Double digits now!", ordinal, name)
	case 13:
		return fmt.Sprintf("Happy %s Birthday %s! Welcome to teen years!", ordinal, name)
	case 16:
		return fmt.Sprintf("Happy Sweet 16 %s! Enjoy your special day!", name)
	case 18:
		return fmt.Sprintf("Happy %s Birthday %s! Welcome to adulthood!", ordinal, name)
	case 21:
		return fmt.Sprintf("Happy %s Birthday %s! Cheers to your 21st!", ordinal, name)
	case 30:
		return fmt.Sprintf("Happy %s Birthday %s! Welcome to your 30s!", ordinal, name)
	case 40:
		return fmt.Sprintf("Happy %s Birthday %s! Like fine wine, you get better!", ordinal, name)
	case 50:
		return fmt.Sprintf("Happy %s Birthday %s! Half a century young!", ordinal, name)
	case 60:
		return fmt.Sprintf("Happy %s Birthday %s! Diamond jubilee celebration!", ordinal, name)
	case 100:
		return fmt.Sprintf("Happy Centennial Birthday %s! A century of amazing you!", name)
	default:
		return fmt.Sprintf("Happy %s Birthday %s! May your day be amazing!", ordinal, name)
	}
}

// GreetingFor builds the banner for the selected date.
func GreetingFor(profile *Profile, on Date) Greeting {
	if profile != nil && IsBirthday(profile.BirthDate, on) {
		age := AgeOn(profile.BirthDate, on)
		return Greeting{
			Birthday: true,
			Age:      age,
			Message:  BirthdayMessage(age, profile.Name),
			Byline:   BirthdaySignoff,
		}
	}
	return Greeting{Message: DefaultQuote, Byline: DefaultQuoteAuthor}
}
