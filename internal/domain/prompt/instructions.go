package prompt

// Instructions is the default plan template.
const Instructions = `1) Build a one-week workout schedule following a {{split}} plan. Every training day has exactly four exercises. The schedule covers {{frequency}}.
2) {{split_guidance}}
3) Only choose {{equipment}} exercises of the {{types}} type at {{experience}} difficulty, focused on {{muscle}} muscle engagement. Compound exercises are allowed when several muscle groups are selected.
4) Exercises may repeat up to {{repeat}} across the week, but no two days are identical unless repetition is 100%. With 0% repetition every exercise is used once. Prefer repeating highly rated exercises.
5) By the end of the week every individual muscle of each selected muscle group must be covered.
6) Pick exercises only from the table below, enclosed in quotes. It lists exercise name and rating. Avoid exercises rated 0.0 unless options are sparse.
   "{{table}}"
7) Follow the output format between the triple backticks exactly. Bracketed text is a placeholder to replace. Use "Rest Day" as the exercise name for rest days. A 7 days/week schedule has no rest days.
` + "```" + `
Day 1:
    Exercise 1: [Exercise 1 Name]
    Exercise 2: [Exercise 2 Name]
    Exercise 3: [Exercise 3 Name]
    Exercise 4: [Exercise 4 Name]
    Rationale: [The muscle groups targeted and how the exercises fit the {{split}} plan.]

Day 2:
    [Same structure as Day 1 with a different set of exercises]

...

Day 7:
    [Same structure as Day 1 with a different set of exercises]
` + "```\n"
