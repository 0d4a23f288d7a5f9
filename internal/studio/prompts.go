package studio

import (
	"fmt"
	"strings"
)

const appContext = `You are an expert AI assistant integrated into "AI Music Studio Pro". ` +
	`This is an all-in-one application designed to help musicians and creators generate complete musical packages. ` +
	`The user can write lyrics, generate vocal tracks, create cover art, produce music videos, and get monetization advice. ` +
	`Your goal is to provide creative, helpful, and context-aware assistance for their music projects.`

// System instructions, one per tool
var (
	inspirationInstruction  = appContext + " Your task is to provide inspiration for a new song."
	chatInstruction         = appContext + " You are currently in the 'Songwriting Assistant' module. Your primary role is to act as a creative partner for songwriting. Help the user brainstorm lyrics, develop themes, structure songs, and explore musical ideas."
	monetizationInstruction = appContext + " You are in the 'Monetization & Promotion Hub'. Your task is to act as an expert digital marketing strategist for independent musicians."
	conceptsInstruction     = appContext + " Your task is to brainstorm creative cover art ideas based on song lyrics."
	storyboardInstruction   = appContext + " You are in the 'Video Studio'. Your task is to act as a creative music video director, translating lyrics into a visual storyboard."
	analysisInstruction     = appContext + " You are in the 'Video Analyzer' tool. Your task is to analyze video content from a technical and artistic perspective to help the user understand its visual elements."
)

const inspirationPrompt = "Suggest three interesting and unique song concepts. For each, provide a title and a brief one-sentence description. Format it as a simple list."

// Fixed user-facing texts
const (
	chatErrorMessage       = "Sorry, I encountered an error. Please try again."
	inspirationFailed      = "Could not fetch ideas. Please try again."
	lyricsFailed           = "Sorry, an error occurred while generating lyrics."
	conceptsFailed         = "Could not generate art concepts."
	planFailed             = "Sorry, I couldn't generate a plan. Please try again."
	storyboardFailed       = "Error: Could not generate a storyboard. Please write a prompt manually."
	analysisFailed         = "An error occurred during analysis."
	noFramesMessage        = "Could not extract frames from video."
	speechFailed           = "Could not generate the vocal track."
	imageFailed            = "Could not generate the image."
	editFailed             = "Could not edit the image."
	voicePreviewPhrase     = "Hello, you are listening to my voice."
	defaultAnalysisRequest = "Describe this video's visual style and key elements."
)

func wizardLyricsPrompt(idea string) string {
	return fmt.Sprintf(`You are an expert songwriter AI for the "AI Music Studio Pro" app. Your task is to transform a user's idea into a complete, well-structured song with compelling lyrics.

**User's Idea:**
---
%s
---

**Your Process:**
1.  **Analyze the Idea:** Briefly determine the core theme, mood, and narrative of the user's prompt.
2.  **Define a Structure:** Choose a standard song structure (e.g., Verse-Chorus-Verse-Chorus-Bridge-Chorus-Outro).
3.  **Write the Lyrics:** Write the full lyrics, following the structure you defined. Ensure the lyrics have a consistent rhyme scheme, rhythm, and emotional arc.
4.  **Format the Output:** Present the final lyrics clearly, with labels for each section (e.g., [Verse 1], [Chorus], [Bridge]). Do not include your analysis or any other text, only the formatted lyrics.

Generate the song lyrics now.`, idea)
}

func artConceptsPrompt(lyrics string) string {
	return fmt.Sprintf(`You are a creative director AI for the "AI Music Studio Pro" app.
Based on the provided song lyrics, generate 3 distinct and visually compelling concepts for the song's cover art.
Each concept should be a single, descriptive sentence, focusing on mood, imagery, and style.

**Lyrics:**
---
%s
---

Format the output as a simple list. Do not add any extra commentary before or after the list.
Example:
- A lone astronaut looking at a neon-lit Earth from a dark spaceship window.
- A close-up on a cracked, vintage photograph of two smiling people, with rain effects overlaid.
- An abstract explosion of vibrant colors, representing a chaotic and beautiful emotion.`, lyrics)
}

func monetizationPrompt(description string) string {
	return fmt.Sprintf(`An artist has just created a new song and needs a comprehensive monetization and promotion plan.

**Song Description:**
---
%s
---

**Your Task:**
Create a detailed, actionable marketing plan with a focus on YouTube, TikTok, and Instagram. The plan should be easy to follow and include creative, platform-specific ideas. Structure your response with clear headings.

**Include the following sections:**
1.  **Overall Strategy:** A brief summary of the song's potential audience and the core marketing angle.
2.  **YouTube Promotion Plan:**
    *   Suggest 2-3 specific video content ideas beyond the official music video (e.g., lyric video with a unique visual style, behind-the-scenes, live acoustic version).
    *   Provide advice on video titles, descriptions, and tags for discoverability.
    *   Suggest YouTube Shorts ideas.
3.  **TikTok Promotion Plan:**
    *   Propose a specific, catchy trend or challenge that could be created for the song.
    *   Suggest 3-5 short video concepts that are easy for other users to recreate.
    *   List relevant hashtags.
4.  **Instagram Promotion Plan:**
    *   Suggest ideas for Reels that showcase the song.
    *   Provide ideas for Feed posts (e.g., cover art reveal, carousel with lyrics).
    *   Suggest ideas for Stories to engage with followers (e.g., polls, Q&A about the song).
5.  **Monetization Tips:** Briefly mention key ways to monetize beyond streaming, such as YouTube Content ID, merchandise ideas related to the song, and leveraging the song on creator platforms.

Generate the plan now.`, description)
}

func storyboardPrompt(lyrics string) string {
	return fmt.Sprintf(`Analyze the following song lyrics and generate a detailed, creative, and synchronized shot-by-shot storyboard prompt for a music video.
The output should be a single, long text prompt that can be directly used with a video generation AI like Veo.

**Instructions:**
1.  **Analyze Structure:** Identify verses, choruses, bridges, and outros in the lyrics.
2.  **Visual Theme:** Establish a consistent visual theme that matches the mood and narrative of the lyrics.
3.  **Pacing and Rhythm:** Describe shots with pacing that matches the song's likely tempo and energy (e.g., "quick cuts during the energetic chorus," "a long, slow pan during the introspective verse").
4.  **Scene Descriptions:** For each section of the lyrics, describe the scene, setting, characters (if any), actions, and mood.
5.  **Camera Work:** Suggest specific camera angles and movements (e.g., "extreme close-up," "dynamic drone shot," "handheld camera following the singer").
6.  **Seamless Prompt:** Combine all these elements into a flowing, descriptive paragraph. Do not use bullet points or numbered lists in the final output. The entire output must be a single block of text.

**Lyrics to Analyze:**
---
%s
---

Generate the storyboard prompt now.`, lyrics)
}

func presetPrompt(preset, text string) string {
	return fmt.Sprintf("Please write in a %s style. My prompt is: \"%s\"", preset, text)
}

func chatRevisionPrompt(feedback string) string {
	return fmt.Sprintf("Please revise the previous response based on this feedback: \"%s\".", feedback)
}

func vocalRevisionPrompt(feedback, lyrics string) string {
	return fmt.Sprintf("Based on this feedback: \"%s\", please regenerate the audio for the following lyrics: %s", feedback, lyrics)
}

// speechText applies the optional vocal style directive
func speechText(text, style string) string {
	if strings.TrimSpace(style) == "" {
		return text
	}
	return fmt.Sprintf("Say with this style/emotion: %s. The text to say is: \"%s\"", style, text)
}

// imagePrompt composes the cover art prompt from the panel fields
func imagePrompt(prompt, negative, style, theme string) string {
	full := prompt
	if theme != "" {
		full = fmt.Sprintf("Inspired by a song with this theme: \"%s\", create the following image: %s", theme, prompt)
	}
	if style != "" {
		full = fmt.Sprintf("%s, in the style of %s", full, style)
	}
	if strings.TrimSpace(negative) != "" {
		full += ". Negative prompt: " + negative
	}
	return full
}

func videoPrompt(prompt, style string) string {
	if style == "" {
		return prompt
	}
	return fmt.Sprintf("A music video with a %s style. %s", style, prompt)
}

// assetsAppendix lists the final assets the artist attached to a plan request
func assetsAppendix(a Assets) string {
	if !a.Song && !a.Art && !a.Video {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n**Artist has provided the following final assets for the project:**\n")
	if a.Song {
		b.WriteString("- Final audio track\n")
	}
	if a.Art {
		b.WriteString("- Official cover art\n")
	}
	if a.Video {
		b.WriteString("- Official music video\n")
	}
	return b.String()
}
