package resume

const scoreSystemPrompt = `You are an experienced technical recruiter. Compare the resume to the job description and rate how well the candidate fits.
Respond with a single JSON object and nothing else:
{"score": <integer 0-100>, "summary": "<one paragraph>", "strengths": ["..."], "gaps": ["..."]}`

const optimizeSystemPrompt = `You are a resume editor. Suggest concrete changes that make the resume a better match for the job description without inventing experience.
Respond with a single JSON object and nothing else:
{"suggestions": [{"section": "<resume section>", "original": "<text or empty>", "suggested": "<replacement>", "reason": "<why>"}], "missing_keywords": ["..."]}`

const jobDescriptionSystemPrompt = `You extract structured data from job postings.
Respond with a single JSON object and nothing else:
{"title": "...", "company": "...", "seniority": "...", "keywords": ["..."], "required_skills": ["..."], "nice_to_have": ["..."], "responsibilities": ["..."]}`

const parseResumeSystemPrompt = `You extract structured data from resumes given as plain text.
Respond with a single JSON object and nothing else:
{"contact": {"name": "...", "email": "...", "phone": "...", "location": "...", "links": ["..."]}, "summary": "...", "experience": [{"title": "...", "company": "...", "start": "...", "end": "...", "highlights": ["..."]}], "education": [{"institution": "...", "degree": "...", "year": "..."}], "skills": ["..."]}`

func scoreUserPrompt(resumeText, jobDescription string) string {
	return "Resume:\n" + resumeText + "\n\nJob description:\n" + jobDescription
}

func optimizeUserPrompt(resumeText, jobDescription string) string {
	return "Resume:\n" + resumeText + "\n\nTarget job description:\n" + jobDescription
}

func jobDescriptionUserPrompt(text string) string {
	return "Job posting:\n" + text
}

func parseResumeUserPrompt(text string) string {
	return "Resume text:\n" + text
}
