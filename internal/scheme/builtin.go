package scheme

import "github.com/alfredjeanlab/agora/internal/model"

func undermine(key, text string) model.CQTemplate {
	return model.CQTemplate{Key: key, Text: text, AttackType: model.RelUndermines, Scope: model.ScopePremise}
}

func undercut(key, text string) model.CQTemplate {
	return model.CQTemplate{Key: key, Text: text, AttackType: model.RelUndercuts, Scope: model.ScopeInference}
}

func rebut(key, text string) model.CQTemplate {
	return model.CQTemplate{Key: key, Text: text, AttackType: model.RelRebuts, Scope: model.ScopeConclusion}
}

// Builtin returns fresh copies of the schemes every catalog starts with.
func Builtin() []*model.Scheme {
	return []*model.Scheme{
		{
			Key:  "expert_opinion",
			Name: "Argument from expert opinion",
			Slots: []model.Slot{
				{Role: "source", Min: 1, Max: 1},
				{Role: "assertion"},
			},
			CQTemplates: []model.CQTemplate{
				undermine("credentials", "Is the authority sufficiently qualified in the relevant domain?"),
				undermine("bias", "Is the authority credible (unbiased, reliable, consistent)?"),
				rebut("disagreement", "Do other experts in the field agree with this claim?"),
			},
		},
		{
			Key:  "cause_to_effect",
			Name: "Argument from cause to effect",
			Slots: []model.Slot{
				{Role: "cause", Min: 1},
				{Role: "correlation", Max: 1},
			},
			CQTemplates: []model.CQTemplate{
				undercut("causal_link", "Is there a genuine causal connection between the premise and conclusion?"),
				undercut("confounders", "Are there confounding factors or alternative explanations?"),
				undercut("necessary_sufficient", "Is the cause necessary and/or sufficient for the effect?"),
			},
		},
		{
			Key:  "analogy",
			Name: "Argument from analogy",
			Slots: []model.Slot{
				{Role: "source_case", Min: 1, Max: 1},
				{Role: "similarity", Min: 1},
			},
			CQTemplates: []model.CQTemplate{
				undercut("relevant_similarities", "Are the similarities between the cases relevant to the conclusion?"),
				undercut("critical_differences", "Are there critical differences that undermine the analogy?"),
				rebut("other_analogies", "Are there better or conflicting analogies?"),
			},
		},
		{
			Key:  "definition",
			Name: "Argument from definition to classification",
			Slots: []model.Slot{
				{Role: "definition", Min: 1, Max: 1},
				{Role: "property", Min: 1},
			},
			CQTemplates: []model.CQTemplate{
				undermine("definition_accepted", "Is the definition widely accepted or stipulative?"),
				undercut("borderline_case", "Is this a borderline case where the definition is unclear?"),
				undermine("necessary_properties", "Does the subject have all necessary properties of the category?"),
			},
		},
		{
			Key:  "practical_reasoning",
			Name: "Practical reasoning",
			Slots: []model.Slot{
				{Role: "goal", Min: 1, Max: 1},
				{Role: "means", Min: 1},
			},
			CQTemplates: []model.CQTemplate{
				undermine("goal_desirable", "Is the stated goal genuinely desirable or beneficial?"),
				undercut("feasible", "Is the proposed action feasible given available resources?"),
				rebut("side_effects", "Are there negative side effects or unintended consequences?"),
				rebut("alternative_means", "Are there better alternative means to achieve the goal?"),
			},
		},
		{
			Key:  "sign",
			Name: "Argument from sign",
			Slots: []model.Slot{
				{Role: "sign", Min: 1},
			},
			CQTemplates: []model.CQTemplate{
				undercut("correlation_spurious", "Is the correlation spurious or coincidental?"),
				undermine("correlation_strength", "Is the correlation strong and statistically significant?"),
				rebut("other_indicators", "Are there other indicators that contradict this sign?"),
			},
		},
		{
			Key:  "generalization",
			Name: "Inductive generalization",
			Slots: []model.Slot{
				{Role: "sample", Min: 1},
			},
			CQTemplates: []model.CQTemplate{
				undermine("sample_representative", "Is the sample representative of the population?"),
				undermine("sample_size", "Is the sample size sufficient for the generalization?"),
				rebut("counterexamples", "Are there counterexamples to the generalization?"),
			},
		},
		{
			Key:  "best_explanation",
			Name: "Inference to the best explanation",
			Slots: []model.Slot{
				{Role: "observation", Min: 1},
			},
			CQTemplates: []model.CQTemplate{
				rebut("best_explanation", "Is this the best available explanation, or are there better alternatives?"),
				undercut("explains_all_data", "Does the explanation account for all relevant evidence?"),
			},
		},
	}
}
