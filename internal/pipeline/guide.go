package pipeline

// Guide is the instruction text shown for a phase.
type Guide struct {
	Phase       Phase    `json:"phase"`
	Instruction string   `json:"instruction"`
	Placeholder string   `json:"placeholder,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

var guides = map[Phase]Guide{
	PhaseUpload: {
		Instruction: "Load a KPI dashboard (.xlsx or .csv) or pick the built-in sample scenario to begin.",
	},
	PhaseDefine: {
		Instruction: "Open the scenario file in Excel. Identify the single most important performance gap or problem statement. " +
			"Be specific about what is broken and why it matters.",
		Placeholder: "e.g., The Q3 sales in the North region are down 15% YoY despite a 10% increase in marketing spend, " +
			"indicating a conversion efficiency issue...",
	},
	PhaseGather: {
		Instruction: "Compose 5 key observations from the Excel data that are most relevant to the gap you defined. " +
			"Look for trends, outliers, or correlations in the charts and tables.",
		Placeholder: "Enter an observation...",
		Examples: []string{
			"North Region revenue dropped to $950k in Q3 despite a 40% increase in marketing spend.",
			"West Region employee turnover spiked to 22% in Q3, significantly higher than the company average of 8%.",
			"Customer satisfaction scores in the West dropped from 7.5 to 6.8 over the last three quarters.",
		},
	},
	PhaseAnalyze: {
		Instruction: "Look deeper into the spreadsheet. Are there other indications in the dashboard that support or contradict your verdict? " +
			"Consider alternative explanations. What might you be missing?",
		Placeholder: "e.g., While sales are down, customer satisfaction scores in the same region have actually improved. " +
			"This suggests the issue isn't product quality, but potentially pricing or competitor activity...",
	},
	PhaseDecide: {
		Instruction: "Construct a decisive Action Plan. Based on your definition, observations, and analysis, what should the team do next? " +
			"Prioritize high-impact actions.",
		Placeholder: "1. Immediate Audit of...\n2. Reallocate budget from X to Y...\n3. Launch specific training for...",
	},
	PhaseCommunicate: {
		Instruction: "You have completed the analysis. Submit your work to generate a final review summary and executive communication draft. " +
			"The AI Coach will review your entire thought process and generate a scorecard.",
	},
	PhaseSummary: {
		Instruction: "Review your scorecard and the executive summary draft. Start over to practice another scenario.",
	},
}

// GuideFor returns the guidance for p.
func GuideFor(p Phase) Guide {
	g := guides[p]
	g.Phase = p
	return g
}
