package dataset

// SampleName names the built-in practice dataset.
const SampleName = "Sample Sales Dashboard"

const sampleCSV = `Region,Quarter,Revenue,Target,Marketing_Spend,CSAT_Score,Employee_Turnover
North,Q1,1200000,1100000,150000,8.5,4%
North,Q2,1150000,1150000,160000,8.4,5%
North,Q3,950000,1200000,220000,8.2,12%
South,Q1,900000,900000,80000,7.9,8%
South,Q2,920000,900000,85000,8.0,7%
South,Q3,980000,920000,90000,8.1,6%
East,Q1,1500000,1400000,200000,9.0,3%
East,Q2,1550000,1450000,210000,9.1,3%
East,Q3,1600000,1500000,210000,9.2,3%
West,Q1,800000,800000,100000,7.5,15%
West,Q2,750000,820000,110000,7.2,18%
West,Q3,700000,840000,120000,6.8,22%
`

// Sample returns a fresh copy of the built-in regional sales dashboard.
// Its analysis text is the percent-formatted CSV above, while the sheets
// carry turnover as fractions the way a spreadsheet stores them.
func Sample() *Dataset {
	return &Dataset{
		Name:       SampleName,
		Format:     FormatSample,
		SheetNames: []string{"Sales Data", "Regional Notes"},
		Sheets: map[string][][]string{
			"Sales Data": {
				{"Region", "Quarter", "Revenue", "Target", "Marketing_Spend", "CSAT_Score", "Employee_Turnover"},
				{"North", "Q1", "1200000", "1100000", "150000", "8.5", "0.04"},
				{"North", "Q2", "1150000", "1150000", "160000", "8.4", "0.05"},
				{"North", "Q3", "950000", "1200000", "220000", "8.2", "0.12"},
				{"South", "Q1", "900000", "900000", "80000", "7.9", "0.08"},
				{"South", "Q2", "920000", "900000", "85000", "8.0", "0.07"},
				{"South", "Q3", "980000", "920000", "90000", "8.1", "0.06"},
				{"East", "Q1", "1500000", "1400000", "200000", "9.0", "0.03"},
				{"East", "Q2", "1550000", "1450000", "210000", "9.1", "0.03"},
				{"East", "Q3", "1600000", "1500000", "210000", "9.2", "0.03"},
				{"West", "Q1", "800000", "800000", "100000", "7.5", "0.15"},
				{"West", "Q2", "750000", "820000", "110000", "7.2", "0.18"},
				{"West", "Q3", "700000", "840000", "120000", "6.8", "0.22"},
			},
			"Regional Notes": {
				{"Region", "Manager Notes", "Status"},
				{"North", "Competitor launched aggressive discount campaign in Q3", "Critical"},
				{"South", "Stable performance, new manager onboarding well", "Stable"},
				{"East", "Outperforming targets, candidate for expansion", "Excellent"},
				{"West", "High turnover affecting morale and sales", "At Risk"},
			},
		},
		PrimaryCSV: sampleCSV,
	}
}
