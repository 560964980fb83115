package curriculum

// Default returns the shipped beginner catalog: three project goals, each an
// ordered three-module path.
func Default() *Catalog {
	c, err := New([]Goal{
		{
			Name: "Cricket Game",
			Modules: []string{
				"Setup: The Stadium (Print & Input)",
				"Scoreboard: Storing Runs (Variables)",
				"Umpire: Out or Not Out? (Conditionals)",
			},
		},
		{
			Name: "Food Blog",
			Modules: []string{
				"Menu Card: Writing Text (Strings)",
				"Top Hotels: Making a List (Lists)",
				"Publishing: Saving to File (File I/O)",
			},
		},
		{
			Name: "Expense Tracker",
			Modules: []string{
				"Pocket Money: The Wallet (Integers)",
				"Bill Total: Adding it up (Math)",
				"Daily Log: Keeping Track (Loops)",
			},
		},
	})
	if err != nil {
		// The shipped catalog is validated by tests; a construction error
		// here is a programming mistake.
		panic(err)
	}
	return c
}
