package feedsim

var teamNames = []string{
	"Northbridge FC", "Harbor City", "Redmoor United", "Ashford Athletic",
	"Valley Rovers", "Kingsport", "Eastfield Town", "Silverlake",
	"Old Quay Wanderers", "Brackenridge", "Marlow Park", "Westgate Albion",
}

var goalLines = []string{
	"GOAL! %s strike from the edge of the box!",
	"GOAL! %s head it in from the corner!",
	"GOAL! %s finish a quick counter!",
}

var cardLines = []string{
	"Yellow card for %s after a late challenge.",
	"Booking for %s, a cynical foul.",
}

var updateLines = []string{
	"Big chance for %s, the keeper saves.",
	"%s make a double substitution.",
	"%s hit the woodwork!",
}
