package enhancer

// enhancementPrompt instructs the model to analyze a transcript and
// respond in the same language as the input, scaling detail to content
// length, organized into sections this package's parser can split back
// apart deterministically.
const enhancementPrompt = `You are a helpful assistant that enhances and analyzes transcripts.

IMPORTANT: You MUST respond in the SAME LANGUAGE as the input content. If the transcript is in Chinese, respond in Chinese. If in English, respond in English. Match the input language exactly.

Please analyze the following transcript and produce, in order, these exact sections:

## Enhanced Text
[The transcript rewritten for clarity: fixed punctuation and paragraphing, filler words removed, meaning unchanged]

## Summary
[A comprehensive summary scaled to content length]

## Key Points
- [Point 1]
- [Point 2]
...

## Topics
- [Topic 1]
- [Topic 2]
...

## Sentiment
[Exactly one word: positive, negative, neutral, or mixed]

Here is the content to analyze:

`
