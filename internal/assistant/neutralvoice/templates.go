package neutralvoice

// TemplateBank maps a category to interchangeable replacement phrasings.
// Placeholders are {person}, {task} and {role}.
type TemplateBank map[Category][]string

// Templates never contain blame patterns or harsh openers, so rewritten text
// is stable under a second pass.
var DefaultTemplates = TemplateBank{
	Accusation: {
		"It seems like the load around {task} has been landing unevenly",
		"There may be room to rebalance who handles {task}",
		"The current system for {task} might need a rethink",
	},
	Directive: {
		"It could help to find a shared way to handle {task}",
		"One option might be to revisit how {task} gets done",
		"Perhaps there is a different approach to {task} worth trying",
	},
	Minimization: {
		"The effort behind {task} may be bigger than it looks",
		"There is often invisible work around {task} worth naming",
	},
	Interrogation: {
		"What might make {task} easier to manage?",
		"What would help the routine around {task} work better?",
	},
	RoleAttribution: {
		"It sounds like {person} is feeling the weight of {task} right now",
		"The way {task} is shared with {role} might need a fresh look",
	},
}

var collaborationTemplates = []string{
	"How might we share this differently?",
	"What would feel fair to everyone?",
	"Could we look at this together?",
}

var gentleStarts = []string{
	"I wanted to gently raise something.",
	"Here is something that might be worth looking at together.",
	"Sharing an observation that might help.",
}

// Placeholder defaults used when the context leaves a value empty.
const (
	DefaultPerson = "one person"
	DefaultTask   = "this"
	DefaultRole   = "a family member"
)
