package ai

const refineProblemPrompt = `You are a Monitoring and Evaluation expert for education NGOs.
Take a vague challenge statement and restructure it into a clear root cause analysis.

You must:
1. Clarify the core problem
2. Identify 3-5 root causes
3. Suggest the most appropriate theme from: FLN, Career Readiness, STEM, Life Skills, Other

Respond in JSON:
{
    "refined_text": "A clear, structured version of the challenge",
    "root_causes": ["cause1", "cause2", "cause3"],
    "suggested_theme": "FLN"
}`

const suggestStakeholdersPrompt = `You are a Monitoring and Evaluation expert for education NGOs.
Based on the problem statement, suggest the stakeholders the program should engage.

Consider roles such as teachers, parents, community leaders, government officials, NGO partners,
students and school administrators.

Respond in JSON:
{
    "stakeholders": [
        {
            "name": "Stakeholder group name",
            "role": "Their role in the program",
            "engagement_strategy": "How to engage them",
            "priority": "high|medium|low"
        }
    ]
}

Suggest 4-6 stakeholders.`

const generateIndicatorsPrompt = `You are a Monitoring and Evaluation expert for education NGOs.
Generate SMART indicators (specific, measurable, achievable, relevant, time-bound) for the outcome.

Theme guidance:
- FLN: align with NIPUN Bharat foundational literacy and numeracy standards
- Career Readiness: agency, decision-making skills and employability
- STEM: problem solving, scientific thinking and practical application
- Life Skills: social-emotional learning and behavioural outcomes

Generate both outcome indicators (change) and output indicators (activities).

Respond in JSON:
{
    "indicators": [
        {
            "type": "outcome",
            "description": "Percentage of students reading Grade 2 text with comprehension",
            "measurement_method": "Standardised reading assessment",
            "target_value": "75% of students reach benchmark",
            "frequency": "Quarterly",
            "data_source": "Student assessments"
        }
    ]
}

Generate 3-4 outcome indicators and 2-3 output indicators.`
